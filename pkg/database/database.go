package database

import (
	"edupath_backend/internal/config"
	"edupath_backend/internal/model"
	"edupath_backend/pkg/logger"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	logLevel := gormlogger.Warn
	if mode == "debug" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Database connection established", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return db, nil
}

// Migrate 建表并写入默认徽章
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return err
	}
	logger.Log.Info("Database migration completed")
	return seedBadges(db)
}

func seedBadges(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Badge{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	threshold := 100
	defaults := []model.Badge{
		{
			Name:        "First Steps",
			Description: "Completed a quiz for the first time",
			TriggerType: model.TriggerFirstQuizEver,
			Active:      true,
		},
		{
			Name:        "Century",
			Description: "Collected 100 points",
			TriggerType: model.TriggerPointsThreshold,
			Condition:   datatypes.NewJSONType(model.BadgeCondition{Threshold: &threshold}),
			Active:      true,
		},
		{
			Name:        "Pathfinder",
			Description: "Completed a learning pathway",
			TriggerType: model.TriggerPathwayCompleted,
			Active:      true,
		},
	}
	for i := range defaults {
		if err := db.Create(&defaults[i]).Error; err != nil {
			return err
		}
	}
	logger.Log.Info("Default badges seeded", zap.Int("count", len(defaults)))
	return nil
}
