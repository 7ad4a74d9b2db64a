package main

import (
	"bufio"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"whisp/config"

	"github.com/go-sql-driver/mysql"
)

// 子表在前，保证删除顺序
var tables = []string{
	"reaction",
	"reply",
	"comment",
	"whisper",
	"message",
	"block",
	"friend_request",
	"friendship",
	"user",
}

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "配置文件路径")
	yes := flag.Bool("yes", false, "跳过确认提示")
	flag.Parse()

	cfg := config.LoadConfigFrom(*configPath)
	if cfg.Database.Driver != "" && cfg.Database.Driver != "mysql" {
		log.Fatalf("reset_db only supports mysql, got driver %q", cfg.Database.Driver)
	}

	dsn := dsnFor(cfg.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Database connection test failed: %v", err)
	}
	fmt.Printf("Database connected: %s\n", cfg.Database.Database)

	if !*yes && !confirm() {
		fmt.Println("Operation cancelled")
		return
	}

	// 关闭外键检查，避免约束导致删除失败
	_, _ = db.Exec("SET FOREIGN_KEY_CHECKS=0")
	defer func() { _, _ = db.Exec("SET FOREIGN_KEY_CHECKS=1") }()

	failed := 0
	for _, table := range tables {
		fmt.Printf("Clearing table %s... ", table)
		if _, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE `%s`", table)); err != nil {
			failed++
			fmt.Printf("Failed: %v\n", err)
			continue
		}
		fmt.Println("Success")
	}

	if failed > 0 {
		fmt.Printf("\nDatabase reset finished with %d failed table(s)\n", failed)
		os.Exit(1)
	}
	fmt.Println("\nDatabase reset completed, auto-increment IDs reset to 1")
}

// dsnFor 由配置构建 MySQL DSN
func dsnFor(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}
	return mc.FormatDSN()
}

func confirm() bool {
	fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", tables)
	fmt.Print("Type 'YES' to confirm: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "YES"
}
