package analysis

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Report is the composite artifact: every analysis the service offers, run
// against one site resolution. Sections that failed are absent, with the
// failure recorded in Sections, so one unavailable upstream does not void
// the rest of the report.
type Report struct {
	Site      SiteSummary      `json:"site"`
	Walking   *WalkingResult   `json:"walking,omitempty"`
	Driving   *DrivingResult   `json:"driving,omitempty"`
	Transport *TransportResult `json:"transport,omitempty"`
	Context   *ContextResult   `json:"context,omitempty"`
	View      *ViewResult      `json:"view,omitempty"`
	Noise     *NoiseResult     `json:"noise,omitempty"`
	Sections  []Section        `json:"sections"`
}

// Section records one analysis outcome within a report.
type Section struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Report runs every analysis concurrently for one identifier. The site is
// resolved exactly once; resolution failure fails the whole report. With
// report.fail_fast set, the first section failure cancels the remaining
// sections and fails the call; otherwise failures become section records.
func (s *Service) Report(ctx context.Context, dataType, value string) (*Report, error) {
	st, err := s.resolveSite(ctx, dataType, value)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Site:     st.summary(),
		Sections: make([]Section, 6),
	}

	g, gctx := errgroup.WithContext(ctx)
	run := func(idx int, name string, fn func(context.Context) error) {
		g.Go(func() error {
			err := fn(gctx)
			report.Sections[idx] = Section{Name: name, OK: err == nil}
			if err == nil {
				return nil
			}
			report.Sections[idx].Error = err.Error()
			s.log.Warn("report section failed",
				zap.String("section", name),
				zap.Error(err),
			)
			if s.report.FailFast {
				return err
			}
			return nil
		})
	}

	run(0, "walking", func(ctx context.Context) error {
		r, err := s.walking(ctx, st)
		report.Walking = r
		return err
	})
	run(1, "driving", func(ctx context.Context) error {
		r, err := s.driving(ctx, st)
		report.Driving = r
		return err
	})
	run(2, "transport", func(ctx context.Context) error {
		r, err := s.transport(ctx, st)
		report.Transport = r
		return err
	})
	run(3, "context", func(ctx context.Context) error {
		r, err := s.context(ctx, st)
		report.Context = r
		return err
	})
	run(4, "view", func(ctx context.Context) error {
		r, err := s.view(ctx, st)
		report.View = r
		return err
	})
	run(5, "noise", func(ctx context.Context) error {
		r, err := s.noise(ctx, st)
		report.Noise = r
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
