package store

import (
	"context"
	"fmt"

	"github.com/zulandar/floorboard/internal/models"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/realtime"
	"github.com/zulandar/floorboard/internal/techdoc"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Order returns an order by ID.
func (s *Store) Order(ctx context.Context, id string) (*production.Order, error) {
	var m models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound("order", id, err)
	}
	o := fromOrderModel(m)
	return &o, nil
}

// OrderByNumber returns an order by its human-facing number.
func (s *Store) OrderByNumber(ctx context.Context, number string) (*production.Order, error) {
	var m models.Order
	if err := s.db.WithContext(ctx).Where("order_number = ?", number).First(&m).Error; err != nil {
		return nil, notFound("order", number, err)
	}
	o := fromOrderModel(m)
	return &o, nil
}

// ListOrders returns all orders, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]production.Order, error) {
	var rows []models.Order
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list orders: %w", err)
	}
	out := make([]production.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromOrderModel(r))
	}
	return out, nil
}

// PutOrder inserts or replaces an order keyed by ID.
func (s *Store) PutOrder(ctx context.Context, o production.Order) error {
	m := toOrderModel(o)
	m.CreatedAt = s.now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"order_number", "product_id", "work_cycle_id", "quantity", "deadline"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("store: put order %s: %w", o.ID, err)
	}
	s.publish(realtime.Change{Collection: realtime.CollectionOrders, Op: realtime.OpUpdate, ID: o.ID})
	return nil
}

// Product returns a product by ID.
func (s *Store) Product(ctx context.Context, id string) (*techdoc.Product, error) {
	var m models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound("product", id, err)
	}
	p := fromProductModel(m)
	return &p, nil
}

// PutProduct inserts or replaces a product keyed by ID.
func (s *Store) PutProduct(ctx context.Context, p techdoc.Product) error {
	m := toProductModel(p)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		return fmt.Errorf("store: put product %s: %w", p.ID, err)
	}
	return nil
}

// Drawing returns a drawing by ID.
func (s *Store) Drawing(ctx context.Context, id string) (*techdoc.Drawing, error) {
	var m models.Drawing
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound("drawing", id, err)
	}
	d := fromDrawingModel(m)
	return &d, nil
}

// PutDrawing inserts or replaces a drawing keyed by ID.
func (s *Store) PutDrawing(ctx context.Context, d techdoc.Drawing) error {
	m := toDrawingModel(d)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		return fmt.Errorf("store: put drawing %s: %w", d.ID, err)
	}
	return nil
}

// JobCycle returns a cycle with its stages in order.
func (s *Store) JobCycle(ctx context.Context, id string) (*production.JobCycle, error) {
	var m models.JobCycle
	if err := s.db.WithContext(ctx).Preload("Stages").Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound("job cycle", id, err)
	}
	c := fromCycleModel(m)
	return &c, nil
}

// PutJobCycle inserts or replaces a cycle and all of its stages.
func (s *Store) PutJobCycle(ctx context.Context, c production.JobCycle) error {
	m, err := toCycleModel(c)
	if err != nil {
		return fmt.Errorf("store: put job cycle %s: %w", c.ID, err)
	}
	stages := m.Stages
	m.Stages = nil
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
			return err
		}
		if err := tx.Where("cycle_id = ?", c.ID).Delete(&models.JobStage{}).Error; err != nil {
			return err
		}
		if len(stages) > 0 {
			return tx.Create(&stages).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: put job cycle %s: %w", c.ID, err)
	}
	return nil
}

// SetupMapsByProduct returns a product's setup maps in creation order.
func (s *Store) SetupMapsByProduct(ctx context.Context, productID string) ([]techdoc.SetupMap, error) {
	var rows []models.SetupMap
	err := s.db.WithContext(ctx).Preload("Blocks").
		Where("product_catalog_id = ?", productID).
		Order("created_at").Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: setup maps for %s: %w", productID, err)
	}
	out := make([]techdoc.SetupMap, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromSetupMapModel(r))
	}
	return out, nil
}

// PutSetupMap inserts or replaces a setup map and its blocks.
func (s *Store) PutSetupMap(ctx context.Context, sm techdoc.SetupMap) error {
	m, err := toSetupMapModel(sm)
	if err != nil {
		return fmt.Errorf("store: put setup map %s: %w", sm.ID, err)
	}
	m.CreatedAt = s.now()
	blocks := m.Blocks
	m.Blocks = nil
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "product_catalog_id", "photo_url",
				"drawing_id", "drawing_url", "drawing_name", "consumption"}),
		}).Create(&m).Error
		if err != nil {
			return err
		}
		if err := tx.Where("setup_map_id = ?", sm.ID).Delete(&models.SetupBlock{}).Error; err != nil {
			return err
		}
		if len(blocks) > 0 {
			return tx.Create(&blocks).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: put setup map %s: %w", sm.ID, err)
	}
	return nil
}
