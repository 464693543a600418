package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/pkg/logx"
)

// notificationRow is the gorm model for the notification table. Metadata
// and status metadata are stored as JSON columns so per-type documents
// stay queryable without schema changes.
type notificationRow struct {
	ID                string         `gorm:"column:id;primaryKey"`
	NotificationType  string         `gorm:"column:notification_type;not null;index:idx_notification_due,priority:3"`
	RecipientRef      string         `gorm:"column:recipient_ref;not null"`
	DateScheduled     string         `gorm:"column:date_scheduled;not null;index:idx_notification_due,priority:2"`
	Status            string         `gorm:"column:status;not null;index:idx_notification_due,priority:1"`
	Metadata          datatypes.JSON `gorm:"column:metadata"`
	DateTimeProcessed *time.Time     `gorm:"column:date_time_processed"`
	StatusMeta        datatypes.JSON `gorm:"column:status_meta"`
}

func (notificationRow) TableName() string { return "notification" }

type postgresStore struct {
	db       *gorm.DB
	statuses *registry.Statuses
	log      logx.Logger
}

func openPostgres(cfg Config, statuses *registry.Statuses, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&notificationRow{}); err != nil {
		return nil, err
	}
	return &postgresStore{db: db, statuses: statuses, log: log}, nil
}

func (s *postgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *postgresStore) Save(ctx context.Context, n *notification.Notification) error {
	row, err := toRow(n)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(row).Error
}

func (s *postgresStore) SaveAll(ctx context.Context, ns []*notification.Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, n := range ns {
			row, err := toRow(n)
			if err != nil {
				return err
			}
			if err := tx.Save(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *postgresStore) Get(ctx context.Context, id string) (*notification.Notification, error) {
	var row notificationRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.fromRow(&row)
}

func (s *postgresStore) FindPending(ctx context.Context, status notification.Status, onOrBefore notification.Date) ([]*notification.Notification, error) {
	var rows []notificationRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND date_scheduled <= ?", status.Name, onOrBefore.String()).
		Order("date_scheduled, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.fromRows(rows)
}

func (s *postgresStore) FindAwaitingProvider(ctx context.Context, status notification.Status) ([]*notification.Notification, error) {
	var rows []notificationRow
	err := s.db.WithContext(ctx).
		Where("status = ?", status.Name).
		Where(datatypes.JSONQuery("status_meta").
			Equals(providerQueuedState, "dispatchResult", "deliveryDetails", "status")).
		Order("date_scheduled, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.fromRows(rows)
}

func toRow(n *notification.Notification) (*notificationRow, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	row := &notificationRow{
		ID:               n.ID,
		NotificationType: n.Type,
		RecipientRef:     n.RecipientRef,
		DateScheduled:    n.DateScheduled.String(),
		Status:           n.Status.Name,
		Metadata:         datatypes.JSON(n.Metadata),
	}
	if !n.DateTimeProcessed.IsZero() {
		t := n.DateTimeProcessed
		row.DateTimeProcessed = &t
	}
	if n.StatusMeta != nil {
		b, err := json.Marshal(n.StatusMeta)
		if err != nil {
			return nil, err
		}
		row.StatusMeta = datatypes.JSON(b)
	}
	return row, nil
}

func (s *postgresStore) fromRow(row *notificationRow) (*notification.Notification, error) {
	d, err := notification.ParseDate(row.DateScheduled)
	if err != nil {
		return nil, err
	}
	n := &notification.Notification{
		ID:            row.ID,
		Type:          row.NotificationType,
		RecipientRef:  row.RecipientRef,
		DateScheduled: d,
		Status:        reconstituteStatus(s.statuses, row.Status),
		Metadata:      json.RawMessage(row.Metadata),
	}
	if row.DateTimeProcessed != nil {
		n.DateTimeProcessed = *row.DateTimeProcessed
	}
	if len(row.StatusMeta) > 0 {
		var sm notification.StatusMeta
		if err := json.Unmarshal(row.StatusMeta, &sm); err != nil {
			return nil, err
		}
		n.StatusMeta = &sm
	}
	return n, nil
}

func (s *postgresStore) fromRows(rows []notificationRow) ([]*notification.Notification, error) {
	out := make([]*notification.Notification, 0, len(rows))
	for i := range rows {
		n, err := s.fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
