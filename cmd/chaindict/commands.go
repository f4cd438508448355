package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bsm/chaindict"
	"github.com/bsm/chaindict/dictcdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	cfg        config
	configPath string

	out io.Writer
	in  io.Reader

	log    *zap.Logger
	reg    *prometheus.Registry
	closer io.Closer
	r      *chaindict.Resolver
}

func newRootCmd(out io.Writer, in io.Reader) *cobra.Command {
	a := &app{cfg: defaultConfig(), out: out, in: in}

	root := &cobra.Command{
		Use:               "chaindict",
		Short:             "Manage append-only dictionary chains",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	a.cfg.bindFlags(root.PersistentFlags())

	for _, cmd := range []*cobra.Command{
		a.extendCmd(),
		a.dumpCmd(),
		a.deltaCmd(),
		a.infoCmd(),
		a.checkpointCmd(),
		a.exportCmd(),
		a.watchCmd(),
	} {
		cmd.RunE = a.closing(cmd.RunE)
		root.AddCommand(cmd)
	}
	return root
}

// closing wraps fn to release all resources acquired by setup, whether fn
// fails or not.
func (a *app) closing(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if cerr := a.teardown(); err == nil {
			err = cerr
		}
		return err
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.configPath != "" {
		if err := a.cfg.load(a.configPath, cmd.Flags()); err != nil {
			return err
		}
	}

	var err error
	if a.cfg.Verbose {
		a.log, err = zap.NewDevelopment()
	} else {
		a.log, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}

	a.reg = prometheus.NewRegistry()
	store, closer, err := openStore(cmd.Context(), &a.cfg, a.reg, a.log)
	if err != nil {
		return err
	}
	a.closer = closer

	a.r, err = chaindict.NewResolver(store, a.cfg.Namespace, &chaindict.Options{
		Logger:         a.log,
		Concurrency:    a.cfg.Concurrency,
		CacheSize:      a.cfg.CacheSize,
		SnapshotPolicy: chaindict.SnapshotEvery(a.cfg.SnapshotEvery),
		MaxRetries:     a.cfg.MaxRetries,
	})
	if err != nil {
		_ = closer.Close()
	}
	return err
}

func (a *app) teardown() error {
	if a.r != nil {
		_ = a.r.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *app) extendCmd() *cobra.Command {
	var snapshot bool
	cmd := &cobra.Command{
		Use:   "extend [value...]",
		Short: "Append a link with all values not yet in the chain",
		Long:  "Append a link with all values not yet in the chain. Without arguments, values are read from stdin, one per line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			batch := make([][]byte, 0, len(args))
			for _, arg := range args {
				batch = append(batch, []byte(arg))
			}
			if len(args) == 0 {
				scanner := bufio.NewScanner(a.in)
				scanner.Buffer(make([]byte, 64*1024), 16<<20)
				for scanner.Scan() {
					batch = append(batch, append([]byte(nil), scanner.Bytes()...))
				}
				if err := scanner.Err(); err != nil {
					return err
				}
			}

			ext, err := chaindict.NewExtender(a.r).ExtendRetry(cmd.Context(), batch, snapshot)
			if ext != nil && ext.Created {
				fmt.Fprintf(a.out, "link %d: %d new values, ids %d-%d", ext.Link, len(ext.Accepted), ext.BaseID, ext.BaseID+uint32(len(ext.Accepted))-1)
				if ext.Snapshot {
					fmt.Fprint(a.out, " (snapshot)")
				}
				fmt.Fprintln(a.out)
			} else if err == nil {
				fmt.Fprintln(a.out, "no new values")
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "also write a snapshot for the new link")
	return cmd
}

func (a *app) dumpCmd() *cobra.Command {
	var link int64
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print all entries of the chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.materialize(cmd, link)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(a.out)
			d.Range(0, func(ent chaindict.Entry) bool {
				fmt.Fprintf(w, "%d\t%s\n", ent.ID, ent.Value)
				return true
			})
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&link, "link", -1, "materialize up to this link instead of the latest")
	return cmd
}

func (a *app) deltaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delta LINK",
		Short: "Print the entries introduced by a single link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseLink(args[0])
			if err != nil {
				return err
			}
			c, err := a.r.Chain(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := a.r.DeltaOnly(cmd.Context(), c, index)
			if err != nil {
				return err
			}
			for _, ent := range entries {
				fmt.Fprintf(a.out, "%d\t%s\n", ent.ID, ent.Value)
			}
			return nil
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the links of the chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.r.Chain(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, "link\tdelta\tsnapshot\tbase_id\tentries")
			for _, l := range c.Links() {
				info, err := a.r.LinkInfo(cmd.Context(), c, l.Index)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%d\t%t\t%t\t%d\t%d\n", l.Index, l.HasDelta, l.HasSnapshot, info.BaseID, info.EntryCount)
			}
			return nil
		},
	}
}

func (a *app) checkpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint LINK",
		Short: "Write the snapshot of an existing link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseLink(args[0])
			if err != nil {
				return err
			}
			return chaindict.NewExtender(a.r).Checkpoint(cmd.Context(), index)
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var link int64
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export the dictionary to a CDB file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.materialize(cmd, link)
			if err != nil {
				return err
			}
			if err := dictcdb.Write(args[0], d); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %d entries to %s\n", d.Len(), args[0])
			return nil
		},
	}
	cmd.Flags().Int64Var(&link, "link", -1, "materialize up to this link instead of the latest")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var fromStart bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the entries of new links as they appear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := newWatcher(a.r, a.out, a.log, a.reg)

			if a.cfg.MetricsAddr != "" {
				srv := &http.Server{
					Addr:              a.cfg.MetricsAddr,
					Handler:           promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("metrics server failed", zap.Error(err))
					}
				}()
				defer srv.Close()
			}

			if !fromStart {
				if err := w.skipExisting(ctx); err != nil {
					return err
				}
			}
			return w.run(ctx, a.cfg.Interval)
		},
	}
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "print all existing links first")
	cmd.Flags().DurationVar(&a.cfg.Interval, "interval", a.cfg.Interval, "poll interval")
	cmd.Flags().StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve metrics on this address, empty to disable")
	return cmd
}

func (a *app) materialize(cmd *cobra.Command, link int64) (*chaindict.Dictionary, error) {
	c, err := a.r.Chain(cmd.Context())
	if err != nil {
		return nil, err
	}
	if link < 0 {
		return a.r.MaterializeLatest(cmd.Context(), c)
	}
	if link > int64(^uint32(0)) {
		return nil, fmt.Errorf("invalid link %d", link)
	}
	return a.r.Materialize(cmd.Context(), c, uint32(link))
}

func parseLink(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid link %q", s)
	}
	return uint32(n), nil
}
