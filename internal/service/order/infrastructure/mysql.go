package infrastructure

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// NewMysqlDB 打开进程级的数据库连接并保证表结构就绪。
// 连接的生命周期跟随进程，由 bootstrap 负责关闭。
func NewMysqlDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&OrderModel{}, &OrderItemModel{}, &OrderReceiptModel{}); err != nil {
		return nil, err
	}
	return db, nil
}

// CloseDB 关闭 gorm 底层的连接池。
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
