package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"arview/pkg/domain"
)

const migrateLockID int64 = 51730417

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&UserModel{}, &ItemModel{}, &ScanEventModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := tx.Exec(`
		DO $$
		BEGIN
			DELETE FROM scan_event_models s
			WHERE NOT EXISTS (SELECT 1 FROM item_models i WHERE i.id = s.item_id);
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'scan_event_models'
				AND constraint_name = 'scan_event_models_item_id_fkey'
			) THEN
				ALTER TABLE scan_event_models
				ADD CONSTRAINT scan_event_models_item_id_fkey
				FOREIGN KEY (item_id) REFERENCES item_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'item_models'
				AND constraint_name = 'item_models_merchant_id_fkey'
			) THEN
				ALTER TABLE item_models
				ADD CONSTRAINT item_models_merchant_id_fkey
				FOREIGN KEY (merchant_id) REFERENCES user_models(id) ON DELETE CASCADE;
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("ensure item foreign keys: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a user. Duplicate emails yield ErrDuplicateKey.
func (s *GormStore) CreateUser(u domain.User) error {
	u.Email = normalizeEmail(u.Email)
	model := userToModel(u)
	return translate(s.db.Create(&model).Error)
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateItem inserts an item. A taken slug yields ErrDuplicateKey.
func (s *GormStore) CreateItem(it domain.Item) error {
	model := itemToModel(it)
	return translate(s.db.Create(&model).Error)
}

// UpdateItem overwrites the mutable columns of an item.
func (s *GormStore) UpdateItem(it domain.Item) error {
	res := s.db.Model(&ItemModel{}).
		Where("id = ?", it.ID).
		Updates(map[string]any{
			"name":          it.Name,
			"slug":          it.Slug,
			"description":   it.Description,
			"model_url":     it.ModelURL,
			"usdz_url":      it.USDZURL,
			"thumbnail_url": it.ThumbnailURL,
			"updated_at":    it.UpdatedAt,
		})
	return translate(res.Error)
}

// GetItem retrieves an item.
func (s *GormStore) GetItem(id string) (domain.Item, bool, error) {
	return s.firstItem("id = ?", id)
}

// GetItemBySlug retrieves an item by its public slug.
func (s *GormStore) GetItemBySlug(slug string) (domain.Item, bool, error) {
	return s.firstItem("slug = ?", slug)
}

func (s *GormStore) firstItem(query string, arg any) (domain.Item, bool, error) {
	var model ItemModel
	if err := s.db.Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Item{}, false, nil
		}
		return domain.Item{}, false, err
	}
	return itemFromModel(model), true, nil
}

// SlugExists reports whether slug is taken by an item other than excludeID.
func (s *GormStore) SlugExists(slug, excludeID string) (bool, error) {
	var count int64
	tx := s.db.Model(&ItemModel{}).Where("slug = ?", slug)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListItemsByMerchant returns a merchant's items, newest first.
func (s *GormStore) ListItemsByMerchant(merchantID string) ([]domain.Item, error) {
	var models []ItemModel
	if err := s.db.Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Item, 0, len(models))
	for _, m := range models {
		items = append(items, itemFromModel(m))
	}
	return items, nil
}

// DeleteItem removes an item and its scan events.
func (s *GormStore) DeleteItem(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ScanEventModel{}, "item_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ItemModel{}, "id = ?", id).Error
	})
}

// CreateScanEvent records a scan event.
func (s *GormStore) CreateScanEvent(e domain.ScanEvent) error {
	model := scanEventToModel(e)
	return s.db.Create(&model).Error
}

// SetScanDuration overwrites the duration of a scan event and returns it.
func (s *GormStore) SetScanDuration(id string, duration int) (domain.ScanEvent, bool, error) {
	var model ScanEventModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ScanEventModel{}).Where("id = ?", id).Update("duration", duration)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&model, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ScanEvent{}, false, nil
		}
		return domain.ScanEvent{}, false, err
	}
	return scanEventFromModel(model), true, nil
}

// ListScanEventsByItem returns all scan events of an item in creation order.
func (s *GormStore) ListScanEventsByItem(itemID string) ([]domain.ScanEvent, error) {
	var models []ScanEventModel
	if err := s.db.Where("item_id = ?", itemID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	events := make([]domain.ScanEvent, 0, len(models))
	for _, m := range models {
		events = append(events, scanEventFromModel(m))
	}
	return events, nil
}

// CountScansByItem returns scan counts keyed by item ID. Items without scans
// are absent from the map.
func (s *GormStore) CountScansByItem(itemIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ItemID string
		Count  int
	}
	if err := s.db.Model(&ScanEventModel{}).
		Select("item_id, COUNT(*) AS count").
		Where("item_id IN ?", itemIDs).
		Group("item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ItemID] = row.Count
	}
	return out, nil
}

// CountScansSince counts scan events of the given items created at or after since.
func (s *GormStore) CountScansSince(itemIDs []string, since time.Time) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := s.db.Model(&ScanEventModel{}).
		Where("item_id IN ? AND created_at >= ?", itemIDs, since.UTC()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
