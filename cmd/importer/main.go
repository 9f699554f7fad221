package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bookstore-pos/internal/config"
	"bookstore-pos/internal/db"
	"bookstore-pos/internal/importer"
	"bookstore-pos/internal/logging"
	productrepo "bookstore-pos/internal/repository/product"
	"bookstore-pos/internal/service/catalog"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to book catalog CSV (code,title,author,price,promotionCode,promotionValue)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("importer")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, catalog.New(productrepo.NewPostgres(pool, logger)))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Int("imported", count), zap.Error(err))
	}

	fmt.Printf("Imported %d books in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
