package flow

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// DefaultMaxChainHops bounds how many auto steps one turn may pass through.
const DefaultMaxChainHops = 5

const chainSeparator = "\n\n"

// Resolution is the outcome of chaining from one step to the first step that
// waits for the user. Response-shaping fields always describe the step the
// chain landed on, never a step it passed through.
type Resolution struct {
	Step         models.StepID
	Phase        models.PhaseID
	Message      string
	ResponseType models.ResponseType
	Rules        []Rule
	AITrigger    *AITrigger
	Terminal     bool
	Hops         int
	// Partial is set when the chain aborted; Message holds what was rendered
	// before the failure.
	Partial bool
}

// Chainer renders a landed step and hops through auto steps.
type Chainer struct {
	reg     *Registry
	router  *Router
	maxHops int
}

// NewChainer returns a chainer capped at maxHops (DefaultMaxChainHops if <= 0).
func NewChainer(reg *Registry, router *Router, maxHops int) *Chainer {
	if maxHops <= 0 {
		maxHops = DefaultMaxChainHops
	}
	return &Chainer{reg: reg, router: router, maxHops: maxHops}
}

// Resolve renders start and, while the current step is an auto step, routes it
// with empty input, applies the hop's patch to c and renders the next step.
// The rendered texts are joined with a blank line. c is mutated in place.
func (ch *Chainer) Resolve(c *models.SessionContext, start models.StepID, in Input) (Resolution, error) {
	var (
		parts []string
		res   Resolution
	)
	step := start
	for {
		def, err := ch.reg.Get(step)
		if err != nil {
			return partial(res, parts), err
		}
		parts = append(parts, def.Render(in, c))
		res.land(def)

		if def.Terminal || def.ResponseType != models.ResponseAuto {
			res.Message = strings.Join(parts, chainSeparator)
			return res, nil
		}
		if res.Hops >= ch.maxHops {
			slog.Error("Chainer.Resolve: chain length exceeded", "start", start, "at", step, "max", ch.maxHops)
			return partial(res, parts), &ConfigurationError{Step: step, Reason: "auto-advance chain exceeded maximum length"}
		}

		next, patch, err := ch.router.Route(c, step, emptyInput())
		if err != nil {
			return partial(res, parts), err
		}
		if next == step {
			return partial(res, parts), &ConfigurationError{Step: step, Reason: "auto step routes to itself"}
		}
		patch.Apply(c)
		step = next
		in = emptyInput()
		res.Hops++
	}
}

// Plan returns the steps a chain starting at start would pass through and land
// on, without rendering anything and without mutating c.
func (ch *Chainer) Plan(c *models.SessionContext, start models.StepID) ([]models.StepID, error) {
	work := c.Clone()
	path := []models.StepID{}
	step := start
	for hops := 0; ; hops++ {
		def, err := ch.reg.Get(step)
		if err != nil {
			return path, err
		}
		path = append(path, step)
		if def.Terminal || def.ResponseType != models.ResponseAuto {
			return path, nil
		}
		if hops >= ch.maxHops {
			return path, &ConfigurationError{Step: step, Reason: "auto-advance chain exceeded maximum length"}
		}
		next, patch, err := ch.router.Route(work, step, emptyInput())
		if err != nil {
			return path, err
		}
		patch.Apply(work)
		step = next
	}
}

// land replaces every response-shaping field with those of def.
func (r *Resolution) land(def *StepDefinition) {
	r.Step = def.ID
	r.Phase = def.Phase
	r.ResponseType = def.ResponseType
	r.Rules = def.Rules
	r.AITrigger = def.AITrigger
	r.Terminal = def.Terminal
}

func partial(res Resolution, parts []string) Resolution {
	res.Message = strings.Join(parts, chainSeparator)
	res.Partial = true
	return res
}
