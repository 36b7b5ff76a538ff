package main

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Keksclan/rawrcache/contextx"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func addPageFlags(cmd *cobra.Command, page, limit *int) {
	cmd.Flags().IntVar(page, "page", 1, "page number")
	cmd.Flags().IntVar(limit, "limit", 10, "page size")
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Read users"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			u, err := a.client.Users().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(u)
		},
	})

	var page, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			p, err := a.client.Users().List(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			return a.print(p)
		},
	}
	addPageFlags(list, &page, &limit)
	cmd.AddCommand(list)
	return cmd
}

func newRecipeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "recipe", Short: "Read and search recipes"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			r, err := a.client.Recipes().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(r)
		},
	})

	var page, limit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search recipes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			p, err := a.client.Recipes().Search(cmd.Context(), args[0], page, limit)
			if err != nil {
				return err
			}
			return a.print(p)
		},
	}
	addPageFlags(search, &page, &limit)
	cmd.AddCommand(search)
	return cmd
}

func newPostCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "post", Short: "Read forum posts"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			p, err := a.client.Posts().GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(p)
		},
	})

	var page, limit int
	var user int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List posts, optionally of one user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			ctx := cmd.Context()
			if user > 0 {
				p, err := a.client.Posts().ListByUser(ctx, user, page, limit)
				if err != nil {
					return err
				}
				return a.print(p)
			}
			p, err := a.client.Posts().List(ctx, page, limit)
			if err != nil {
				return err
			}
			return a.print(p)
		},
	}
	addPageFlags(list, &page, &limit)
	list.Flags().Int64Var(&user, "user", 0, "only posts of this user id")
	cmd.AddCommand(list)
	return cmd
}

func newCommentsCmd(a *app) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "comments <post-id>",
		Short: "List the comments of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			p, err := a.client.Comments().List(cmd.Context(), id, page, limit)
			if err != nil {
				return err
			}
			return a.print(p)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	return cmd
}

type benchResult struct {
	Callers    int    `json:"callers"`
	Rounds     int    `json:"rounds"`
	Failures   int    `json:"failures"`
	Elapsed    string `json:"elapsed"`
	CachedKeys int    `json:"cached_keys"`
}

func newBenchCmd(a *app) *cobra.Command {
	var callers, rounds int
	var bypass bool
	cmd := &cobra.Command{
		Use:   "bench <post-id>",
		Short: "Read one post from many goroutines at once",
		Long: "bench issues the same post read from --callers goroutines, --rounds times.\n" +
			"With --bypass every round skips the cache lookup so only coalescing\n" +
			"de-duplicates the calls. Run with --log-level debug to see each API call.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			ctx := cmd.Context()
			if bypass {
				ctx = contextx.WithCacheBypass(ctx)
			}

			start := time.Now()
			var mu sync.Mutex
			failures := 0
			for range rounds {
				var wg sync.WaitGroup
				for range callers {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, err := a.client.Posts().GetByID(ctx, id); err != nil {
							mu.Lock()
							failures++
							mu.Unlock()
							a.logger.Warn("read failed", "post_id", id, "error", err)
						}
					}()
				}
				wg.Wait()
			}

			return a.print(benchResult{
				Callers:    callers,
				Rounds:     rounds,
				Failures:   failures,
				Elapsed:    time.Since(start).String(),
				CachedKeys: a.client.Posts().Store().Size(),
			})
		},
	}
	cmd.Flags().IntVar(&callers, "callers", 10, "concurrent callers per round")
	cmd.Flags().IntVar(&rounds, "rounds", 3, "number of rounds")
	cmd.Flags().BoolVar(&bypass, "bypass", false, "skip cache lookups")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprint(a.out, a.cfg.String())
			return err
		},
	}
}
