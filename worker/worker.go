// Package worker runs a sketch solver on its own goroutine and streams the
// resulting shapes to a renderer.
//
// A [Solver] owns a private copy of a scene. It receives [Request] values
// on a bounded channel, re-solves the scene after each one, and sends an
// [Upsert] for every shape that changed on a second bounded channel. The
// renderer drains that channel without blocking, typically once per frame,
// using [Poll]. A request whose solve fails numerically is rolled back, so
// the shapes sent always describe a solved scene, except possibly the very
// first ones.
//
// Closing the request channel stops the solver cleanly. Canceling the
// context passed to [Solver.Start] aborts a running solve between
// optimizer iterations.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"honnef.co/go/sketch"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultBuffer is the default capacity of the request and upsert channels.
const DefaultBuffer = 64

// Request is a message to a [Solver]. It is implemented by [Animate] and
// [SetParameter] only.
type Request interface {
	isRequest()
}

// Animate advances the scene's animation to Time, by calling the scene's
// animation hook, and re-solves.
type Animate struct {
	Time float64
}

// SetParameter forces a parameter to a value, as when a user drags a point,
// and re-solves. The parameter keeps its lock flag. Requests naming unknown
// parameters are logged and ignored.
type SetParameter struct {
	ID    sketch.ParameterID
	Value float64
}

func (Animate) isRequest()      {}
func (SetParameter) isRequest() {}

// Upsert tells the renderer to create or replace the shape with the given
// ID. IDs are the stable ids assigned by [sketch.Project]. Shapes are never
// deleted.
type Upsert struct {
	ID    int
	Shape sketch.Shape
}

// Scene is the input of a [Solver].
type Scene struct {
	Objects     *sketch.Objects
	Constraints []sketch.Constraint
	// Animate is called for every Animate request, with the solver's own
	// copy of the objects. It typically sets locked driver parameters as a
	// function of time. It may be nil, in which case Animate requests only
	// re-solve. An error terminates the solver.
	Animate func(objs *sketch.Objects, t float64) error
}

type Options struct {
	// Logger defaults to a logger that discards everything.
	Logger *slog.Logger
	// Metrics may be nil.
	Metrics *Metrics
	// Tracer defaults to the global tracer provider's tracer for this
	// package.
	Tracer trace.Tracer
	Solve  sketch.SolveOptions
	// Buffer is the capacity of the request and upsert channels. It defaults
	// to DefaultBuffer.
	Buffer int
}

// Solver is a solver loop. Create it with [New], then start it with
// [Solver.Start].
type Solver struct {
	requests chan Request
	upserts  chan Upsert

	objs        *sketch.Objects
	constraints []sketch.Constraint
	animate     func(*sketch.Objects, float64) error

	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	solve   sketch.SolveOptions

	// shapes holds the last shape sent for every id.
	shapes map[int]sketch.Shape
}

// New returns a solver for a copy of scene. Later changes to scene.Objects
// don't affect the solver.
func New(scene Scene, opts Options) *Solver {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("honnef.co/go/sketch/worker")
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	objs := scene.Objects
	if objs == nil {
		objs = &sketch.Objects{}
	}
	return &Solver{
		requests:    make(chan Request, opts.Buffer),
		upserts:     make(chan Upsert, opts.Buffer),
		objs:        objs.Clone(),
		constraints: append([]sketch.Constraint(nil), scene.Constraints...),
		animate:     scene.Animate,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		solve:       opts.Solve,
		shapes:      make(map[int]sketch.Shape),
	}
}

// Requests returns the channel the solver receives requests on. Close it to
// stop the solver.
func (s *Solver) Requests() chan<- Request { return s.requests }

// Upserts returns the channel the solver sends shapes on. It is closed when
// the solver stops.
func (s *Solver) Upserts() <-chan Upsert { return s.upserts }

// Handle is a running solver.
type Handle struct {
	g *errgroup.Group
}

// Wait blocks until the solver has stopped. It returns nil if the solver
// stopped because the request channel was closed, the context's error if
// the context was canceled, and otherwise the error that terminated it.
func (h *Handle) Wait() error {
	return h.g.Wait()
}

// Start starts the solver loop on a new goroutine. It must be called at most
// once.
//
// The loop first solves the scene as given and sends every shape. It then
// handles requests until the request channel is closed or ctx is canceled.
func (s *Solver) Start(ctx context.Context) *Handle {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.run(ctx)
	})
	return &Handle{g: g}
}

func (s *Solver) run(ctx context.Context) error {
	defer close(s.upserts)

	// The initial scene is published even if it can't be solved, so that
	// the renderer has something to show.
	if _, err := s.solveScene(ctx); err != nil {
		return err
	}
	if err := s.publish(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-s.requests:
			if !ok {
				s.log.Debug("request channel closed, stopping")
				return nil
			}
			if err := s.handle(ctx, req); err != nil {
				return err
			}
		}
	}
}

func (s *Solver) handle(ctx context.Context, req Request) error {
	prev := s.objs.Clone()
	switch req := req.(type) {
	case Animate:
		if s.animate != nil {
			if err := s.animate(s.objs, req.Time); err != nil {
				return fmt.Errorf("animating to t=%g: %w", req.Time, err)
			}
		}
	case SetParameter:
		if err := s.objs.SetParameter(req.ID, req.Value); err != nil {
			s.log.Warn("ignoring request", "param", req.ID, "err", err)
			return nil
		}
	default:
		panic(fmt.Sprintf("unhandled request type %T", req))
	}
	solved, err := s.solveScene(ctx)
	if err != nil {
		return err
	}
	if !solved {
		// Keep the scene consistent with the shapes already sent.
		s.objs = prev
		s.log.Warn("discarded request", "request", req)
		return nil
	}
	return s.publish(ctx)
}

// solveScene solves the scene and commits the solution. It reports whether
// a solution was found. Numerical failures are logged and leave the scene
// unsolved; it is up to the caller to roll back whatever change prompted the
// solve.
func (s *Solver) solveScene(ctx context.Context) (solved bool, err error) {
	ctx, span := s.tracer.Start(ctx, "worker.solve", trace.WithAttributes(
		attribute.Int("sketch.constraints", len(s.constraints)),
		attribute.Int("sketch.parameters", s.objs.NumParameters()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	p, err := sketch.NewProblem(s.objs, s.constraints)
	if err != nil {
		s.metrics.observeSolve(resultFailed, time.Since(start), 0)
		return false, fmt.Errorf("building problem: %w", err)
	}
	sol, err := sketch.Solve(ctx, p, s.solve)
	d := time.Since(start)
	switch {
	case err == nil:
		if err := s.objs.Apply(sol); err != nil {
			// The problem was built from s.objs a moment ago.
			panic(fmt.Sprintf("internal error: %s", err))
		}
		span.SetAttributes(
			attribute.Int("sketch.iterations", sol.Iterations),
			attribute.Float64("sketch.residual_norm", sol.ResidualNorm),
		)
		s.metrics.observeSolve(resultConverged, d, sol.Iterations)
		s.log.Debug("solved", "iterations", sol.Iterations, "residual", sol.ResidualNorm, "duration", d)
		return true, nil
	case ctx.Err() != nil:
		s.metrics.observeSolve(resultFailed, d, 0)
		return false, ctx.Err()
	case errors.Is(err, sketch.ErrNonConvergence),
		errors.Is(err, sketch.ErrSingular),
		errors.Is(err, sketch.ErrEvaluation):
		s.metrics.observeSolve(resultDiscarded, d, 0)
		span.SetAttributes(attribute.Bool("sketch.discarded", true))
		s.log.Warn("solve failed", "err", err)
		return false, nil
	default:
		s.metrics.observeSolve(resultFailed, d, 0)
		return false, err
	}
}

// publish sends every shape that differs from the one last sent with the
// same id.
func (s *Solver) publish(ctx context.Context) error {
	var n int
	for _, shape := range sketch.Project(s.objs) {
		if prev, ok := s.shapes[shape.ID]; ok && prev == shape {
			continue
		}
		select {
		case s.upserts <- Upsert{ID: shape.ID, Shape: shape}:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.shapes[shape.ID] = shape
		s.metrics.observeUpsert()
		n++
	}
	if n > 0 {
		s.log.Debug("sent shapes", "count", n)
	}
	return nil
}

// Poll calls fn for every upsert that can be received from ch without
// blocking. It returns the number of upserts received and whether ch is
// still open.
func Poll(ch <-chan Upsert, fn func(Upsert)) (n int, open bool) {
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return n, false
			}
			fn(u)
			n++
		default:
			return n, true
		}
	}
}
