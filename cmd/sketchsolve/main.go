// Command sketchsolve animates a demo sketch on a solver worker and writes
// the final frame as an SVG document.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"honnef.co/go/sketch"
	"honnef.co/go/sketch/internal/config"
	"honnef.co/go/sketch/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

type flags struct {
	config   string
	frames   int
	fps      float64
	out      string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "sketchsolve",
		Short: "Animate a demo sketch and render it as SVG",
		Long: `sketchsolve builds a small parametric sketch, animates one of its locked
parameters for a number of frames while a solver worker keeps the
constraints satisfied, and writes the final shapes as an SVG document.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&f.config, "config", "", "path to a YAML config file")
	cmd.Flags().IntVar(&f.frames, "frames", 120, "number of animation frames")
	cmd.Flags().Float64Var(&f.fps, "fps", 60, "frames per second of animation time")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write SVG to this file instead of stdout")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "override log.level from the config")
	return cmd
}

func run(ctx context.Context, f flags, stdout, stderr io.Writer) error {
	if f.frames < 0 {
		return fmt.Errorf("--frames must not be negative")
	}
	if f.fps <= 0 {
		return fmt.Errorf("--fps must be positive")
	}
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	log, err := cfg.Log.Logger(stderr)
	if err != nil {
		return err
	}

	var reg *prometheus.Registry
	var metrics *worker.Metrics
	if cfg.Worker.Metrics {
		reg = prometheus.NewRegistry()
		metrics = worker.NewMetrics(reg)
	}

	s := worker.New(demoScene(), worker.Options{
		Logger:  log.With("component", "worker"),
		Metrics: metrics,
		Solve:   cfg.SolveOptions(),
		Buffer:  cfg.Worker.Buffer,
	})
	h := s.Start(ctx)

	r := newRenderer()
	for frame := range f.frames {
		t := float64(frame+1) / f.fps
		if !r.send(s, worker.Animate{Time: t}) {
			break
		}
		// Like a renderer, pick up whatever is ready once per frame.
		if !r.poll(s.Upserts()) {
			break
		}
	}
	close(s.Requests())
	for u := range s.Upserts() {
		r.upsert(u)
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	log.Info("finished", "frames", f.frames, "shapes", len(r.order), "upserts", r.received)
	if reg != nil {
		logMetrics(log, reg)
	}

	if f.out == "" {
		return writeSVG(stdout, r.shapes())
	}
	fd, err := os.Create(f.out)
	if err != nil {
		return err
	}
	if err := writeSVG(fd, r.shapes()); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}

func writeSVG(w io.Writer, shapes []sketch.Shape) error {
	return sketch.WriteSVG(w, shapes, sketch.SVGOptions{
		View:         sketch.FlipY.ThenScale(50, 50),
		Tolerance:    0.1,
		PointRadius:  3,
		StrokeWidth:  1,
		Padding:      10,
		MaxPrecision: 3,
	})
}

// renderer keeps the latest version of every shape it has been sent, in
// the order the shapes first appeared.
type renderer struct {
	byID     map[int]sketch.Shape
	order    []int
	received int
}

func newRenderer() *renderer {
	return &renderer{byID: make(map[int]sketch.Shape)}
}

func (r *renderer) upsert(u worker.Upsert) {
	if _, ok := r.byID[u.ID]; !ok {
		r.order = append(r.order, u.ID)
	}
	r.byID[u.ID] = u.Shape
	r.received++
}

func (r *renderer) poll(ch <-chan worker.Upsert) bool {
	_, open := worker.Poll(ch, r.upsert)
	return open
}

// send delivers req, consuming upserts while the request channel is full so
// that the worker can't block on us. It returns false if the worker has
// stopped.
func (r *renderer) send(s *worker.Solver, req worker.Request) bool {
	for {
		select {
		case s.Requests() <- req:
			return true
		case u, ok := <-s.Upserts():
			if !ok {
				return false
			}
			r.upsert(u)
		}
	}
}

func (r *renderer) shapes() []sketch.Shape {
	out := make([]sketch.Shape, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}

func logMetrics(log *slog.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		log.Warn("gathering metrics", "err", err)
		return
	}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			attrs := []any{"name", fam.GetName()}
			for _, l := range m.GetLabel() {
				attrs = append(attrs, l.GetName(), l.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				attrs = append(attrs, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
			log.Info("metric", attrs...)
		}
	}
}
