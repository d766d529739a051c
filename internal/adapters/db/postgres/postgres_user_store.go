package postgres

import (
	"context"
	"errors"
	customErrors "github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/weather-auth/internal/domain/auth/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"time"
)

// slotID is the primary key of the only row the table may hold.
const slotID = 1

type userRow struct {
	Slot         int16 `gorm:"primaryKey;autoIncrement:false"`
	Username     string
	PasswordHash []byte
	PasswordSalt []byte
	RefreshToken string
	TokenCreated time.Time
	TokenExpires time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "user_slot" }

type PostgresUserStore struct {
	db *gorm.DB
}

func NewPostgresUserStore(db *gorm.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// AutoMigrate creates the table without golang-migrate (tests, sqlite).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{})
}

func (p *PostgresUserStore) Save(ctx context.Context, u model.User) error {
	row := userRow{
		Slot:         slotID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		PasswordSalt: u.PasswordSalt,
		RefreshToken: u.RefreshToken,
		TokenCreated: u.TokenCreated,
		TokenExpires: u.TokenExpires,
	}
	res := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot"}},
			UpdateAll: true,
		}).
		Create(&row)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "SaveUser")
	}
	return nil
}

func (p *PostgresUserStore) Get(ctx context.Context) (model.User, error) {
	var row userRow
	res := p.db.WithContext(ctx).Where("slot = ?", slotID).First(&row)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, "GetUser")
	}

	return model.User{
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		PasswordSalt: row.PasswordSalt,
		RefreshToken: row.RefreshToken,
		TokenCreated: row.TokenCreated,
		TokenExpires: row.TokenExpires,
	}, nil
}

func (p *PostgresUserStore) SetRefreshToken(ctx context.Context, username, expected string, rt model.RefreshToken) error {
	q := p.db.WithContext(ctx).
		Model(&userRow{}).
		Where("slot = ? AND username = ?", slotID, username)
	if expected != "" {
		// одна строка UPDATE: два refresh с одним токеном не пройдут оба
		q = q.Where("refresh_token = ?", expected)
	}
	res := q.Updates(map[string]any{
			"refresh_token": rt.Token,
			"token_created": rt.Created,
			"token_expires": rt.Expires,
		})
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "SetRefreshToken")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}
	return nil
}

func (p *PostgresUserStore) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
