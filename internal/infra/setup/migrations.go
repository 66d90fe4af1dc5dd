package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	gormpersistence "github.com/swust-xl/CampusPartner-sub001/internal/infra/persistence/gorm"
)

// MigrateDB 执行全部数据库迁移。
// rooms 表需要 ngram FULLTEXT 索引，首次创建使用自定义 SQL，之后交给 AutoMigrate 补列。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := migrateRoomsTable(db); err != nil {
		return fmt.Errorf("failed to migrate rooms table: %w", err)
	}

	if err := db.AutoMigrate(&gormpersistence.UserRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate users table: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

func migrateRoomsTable(db *gorm.DB) error {
	if db.Migrator().HasTable(&gormpersistence.RoomRecord{}) {
		if err := db.AutoMigrate(&gormpersistence.RoomRecord{}); err != nil {
			return fmt.Errorf("failed to auto-migrate rooms table: %w", err)
		}
		logrus.Info("Rooms table schema checked/updated successfully")
		return nil
	}
	if err := db.Exec(createRoomsTableSQL).Error; err != nil {
		return fmt.Errorf("failed to create rooms table: %w", err)
	}
	logrus.Info("Rooms table created successfully")
	return nil
}

const createRoomsTableSQL = `
CREATE TABLE rooms (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	owner_id VARCHAR(64) NOT NULL,
	tag VARCHAR(32) NOT NULL,
	contact_type VARCHAR(32),
	content TEXT,
	start_name VARCHAR(128),
	start_longitude DOUBLE,
	start_latitude DOUBLE,
	end_name VARCHAR(128),
	end_longitude DOUBLE,
	end_latitude DOUBLE,
	start_time DATETIME(3),
	max_member_num BIGINT NOT NULL,
	member_count BIGINT NOT NULL,
	members JSON,
	status VARCHAR(16) NOT NULL,
	created_at DATETIME(3),
	updated_at DATETIME(3),
	archived_at DATETIME(3),
	INDEX idx_rooms_owner_id (owner_id),
	INDEX idx_rooms_tag (tag),
	INDEX idx_rooms_start_time (start_time),
	INDEX idx_rooms_status (status),
	INDEX idx_rooms_created_at (created_at),
	FULLTEXT INDEX ft_rooms_tag_content (tag, content) WITH PARSER ngram
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
`
