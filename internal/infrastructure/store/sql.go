package store

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the kv_entries table backing SQLStore.
type Entry struct {
	Key       string         `gorm:"column:entry_key;type:varchar(191);primaryKey"`
	Value     datatypes.JSON `gorm:"column:value;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (Entry) TableName() string {
	return "kv_entries"
}

// SQLStore keeps each key as a row of kv_entries. Updaters run in a database
// transaction; on postgres a transaction-scoped advisory lock on the key
// serializes writers even before the row exists.
type SQLStore struct {
	db        *gorm.DB
	namespace string
	changes   *broadcaster
}

func NewSQLStore(db *gorm.DB, namespace string) *SQLStore {
	return &SQLStore{db: db, namespace: namespace, changes: newBroadcaster()}
}

// Migrate creates the kv_entries table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Entry{})
}

func (s *SQLStore) key(k string) string {
	return s.namespace + k
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, found, err := findEntry(s.db.WithContext(ctx), s.key(key))
	if err != nil || !found {
		return nil, false, err
	}
	return []byte(e.Value), true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, raw []byte) error {
	if err := upsertEntry(s.db.WithContext(ctx), s.key(key), raw); err != nil {
		return err
	}
	s.changes.publish(key)
	return nil
}

func (s *SQLStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := s.key(key)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", k).Error; err != nil {
				return err
			}
		}
		e, found, err := findEntry(tx, k)
		if err != nil {
			return err
		}
		next, err := fn([]byte(e.Value), found)
		if err != nil {
			return err
		}
		return upsertEntry(tx, k, next)
	})
	if err != nil {
		return err
	}
	s.changes.publish(key)
	return nil
}

// findEntry reads one row without treating absence as an error, so missing
// keys are not logged as failed queries.
func findEntry(db *gorm.DB, key string) (Entry, bool, error) {
	var e Entry
	res := db.Where("entry_key = ?", key).Limit(1).Find(&e)
	if res.Error != nil {
		return Entry{}, false, res.Error
	}
	return e, res.RowsAffected > 0, nil
}

func upsertEntry(db *gorm.DB, key string, raw []byte) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Entry{Key: key, Value: datatypes.JSON(raw), UpdatedAt: time.Now().UTC()}).Error
}

func (s *SQLStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	return s.changes.subscribe(ctx)
}

// SharedFeed is false: Subscribe only reports writes made through this
// handle, not those of other processes sharing the database.
func (s *SQLStore) SharedFeed() bool { return false }

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	s.changes.close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
