// Package techdoc resolves the setup documentation shown next to a task.
package techdoc

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/task"
)

// Product is a catalog entry with an optional technical drawing.
type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DrawingID string `json:"drawingId,omitempty"`
}

// Drawing is a technical drawing image.
type Drawing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SetupBlock is one tool position of a setup map.
type SetupBlock struct {
	ToolNumber string `json:"toolNumber"`
	ToolName   string `json:"toolName"`
	ToolID     string `json:"toolId,omitempty"`
	Settings   string `json:"settings"`
}

// ConsumptionRatio is how much of a component one assembled unit uses.
type ConsumptionRatio struct {
	ComponentID string  `json:"componentId"`
	Ratio       float64 `json:"ratio"`
}

// SetupMap is the machine-setup document for a product.
type SetupMap struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ProductCatalogID string             `json:"productCatalogId"`
	PhotoURL         string             `json:"photoUrl,omitempty"`
	Drawing          *Drawing           `json:"drawing,omitempty"`
	Blocks           []SetupBlock       `json:"blocks"`
	Consumption      []ConsumptionRatio `json:"consumption,omitempty"`
}

// Source is the read side of the document store the resolver walks.
type Source interface {
	Order(ctx context.Context, id string) (*production.Order, error)
	Product(ctx context.Context, id string) (*Product, error)
	Drawing(ctx context.Context, id string) (*Drawing, error)
	JobCycle(ctx context.Context, id string) (*production.JobCycle, error)
	SetupMapsByProduct(ctx context.Context, productID string) ([]SetupMap, error)
}

// Drawing sources reported in Result.DrawingSource.
const (
	DrawingFromProduct  = "product"
	DrawingFromSetupMap = "setup_map"
)

// Result is the documentation for one task. Both fields may be nil; that is
// the "no documentation" state, not an error.
type Result struct {
	TaskID        string    `json:"taskId"`
	SetupMap      *SetupMap `json:"setupMap"`
	DrawingURL    *string   `json:"drawingUrl"`
	DrawingSource string    `json:"drawingSource,omitempty"`
	// Matched is "direct" or "name" depending on how SetupMap was found.
	Matched string `json:"matched,omitempty"`
}

// Empty reports whether nothing was resolved.
func (r Result) Empty() bool {
	return r.SetupMap == nil && r.DrawingURL == nil
}

// ResolverOpts holds parameters for creating a Resolver.
type ResolverOpts struct {
	Source Source
	Logger zerolog.Logger
}

// Resolver picks the setup map and drawing for a task.
type Resolver struct {
	src    Source
	logger zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOpts) *Resolver {
	return &Resolver{src: opts.Source, logger: opts.Logger}
}

// Resolve walks order, product, setup maps and drawing for t. A setup map
// linked from the task's stage wins over a name match. The drawing is the
// setup map's own; the product's drawing is fetched only when the map has
// none. Every lookup failure degrades to a nil field and is logged; Resolve
// never returns an error.
func (r *Resolver) Resolve(ctx context.Context, t task.Task) Result {
	res := Result{TaskID: t.ID}
	if t.OrderID == "" || r.src == nil {
		return res
	}
	log := r.logger.With().Str("taskId", t.ID).Str("orderId", t.OrderID).Logger()

	order, err := r.src.Order(ctx, t.OrderID)
	if err != nil || order == nil {
		r.lookupFailed(log, "order", err)
		return res
	}
	if order.ProductID == "" {
		return res
	}

	maps, err := r.src.SetupMapsByProduct(ctx, order.ProductID)
	if err != nil {
		r.lookupFailed(log, "setup maps", err)
	}

	if m := r.directLink(ctx, log, t, order, maps); m != nil {
		res.SetupMap = m
		res.Matched = "direct"
	} else if m := MatchName(t.Title, maps); m != nil {
		res.SetupMap = m
		res.Matched = "name"
	}

	if res.SetupMap != nil && res.SetupMap.Drawing != nil && res.SetupMap.Drawing.URL != "" {
		url := res.SetupMap.Drawing.URL
		res.DrawingURL = &url
		res.DrawingSource = DrawingFromSetupMap
	} else if url := r.productDrawing(ctx, log, order.ProductID); url != "" {
		res.DrawingURL = &url
		res.DrawingSource = DrawingFromProduct
	}
	return res
}

func (r *Resolver) directLink(ctx context.Context, log zerolog.Logger, t task.Task, order *production.Order, maps []SetupMap) *SetupMap {
	if t.StageID == "" || order.WorkCycleID == "" || len(maps) == 0 {
		return nil
	}
	cycle, err := r.src.JobCycle(ctx, order.WorkCycleID)
	if err != nil || cycle == nil {
		r.lookupFailed(log, "job cycle", err)
		return nil
	}
	stage, ok := cycle.Stage(t.StageID)
	if !ok || stage.SetupMapID == "" {
		return nil
	}
	for i := range maps {
		if maps[i].ID == stage.SetupMapID {
			return &maps[i]
		}
	}
	log.Debug().Str("setupMapId", stage.SetupMapID).Msg("linked setup map not among product maps")
	return nil
}

func (r *Resolver) productDrawing(ctx context.Context, log zerolog.Logger, productID string) string {
	product, err := r.src.Product(ctx, productID)
	if err != nil || product == nil {
		r.lookupFailed(log, "product", err)
		return ""
	}
	if product.DrawingID == "" {
		return ""
	}
	drawing, err := r.src.Drawing(ctx, product.DrawingID)
	if err != nil || drawing == nil {
		r.lookupFailed(log, "drawing", err)
		return ""
	}
	return drawing.URL
}

func (r *Resolver) lookupFailed(log zerolog.Logger, what string, err error) {
	if err == nil {
		log.Debug().Str("lookup", what).Msg("documentation lookup found nothing")
		return
	}
	log.Warn().Err(err).Str("lookup", what).Msg("documentation lookup failed")
}

// MatchName returns the first setup map whose name matches the stage part of
// title. The stage part is everything after the first " - ", or the whole
// title when there is no separator. Names match when, lowercased and
// trimmed, they are equal or one contains the other.
func MatchName(title string, maps []SetupMap) *SetupMap {
	want := stagePart(title)
	if want == "" {
		return nil
	}
	for i := range maps {
		name := strings.ToLower(strings.TrimSpace(maps[i].Name))
		if name == "" {
			continue
		}
		if name == want || strings.Contains(name, want) || strings.Contains(want, name) {
			return &maps[i]
		}
	}
	return nil
}

func stagePart(title string) string {
	if _, after, ok := strings.Cut(title, " - "); ok {
		title = after
	}
	return strings.ToLower(strings.TrimSpace(title))
}
