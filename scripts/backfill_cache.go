// 手动回填已批改成绩的本地缓存
//
// 批改时会自动写入缓存；此脚本用于首次部署或缓存库重建后，
// 把远端已有的批改结果一次性镜像到本地。
//
// 用法: go run scripts/backfill_cache.go
package main

import (
	"context"
	"log"
	"time"

	"edulink_backend/internal/config"
	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/repository"
	"edulink_backend/pkg/database"
	"edulink_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	mongoDB, err := database.InitMongo(&cfg.Mongo)
	if err != nil {
		log.Fatalf("MongoDB连接失败: %v", err)
	}
	gw := gateway.NewMongoGateway(mongoDB)
	repo := repository.NewAttemptRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	total := 0
	for _, status := range []model.AttemptStatus{model.AttemptGraded, model.AttemptFailed} {
		docs, err := gw.Query(ctx, gateway.CollectionAttempts,
			gateway.Filter{"status": string(status)}, "gradedAt")
		if err != nil {
			log.Fatalf("查询远端批改结果失败: %v", err)
		}

		attempts, err := gateway.DecodeAll[model.AssignmentAttempt](docs)
		if err != nil {
			log.Fatalf("解码失败: %v", err)
		}

		for i := range attempts {
			if err := repo.Upsert(&attempts[i]); err != nil {
				log.Printf("缓存写入失败 attemptId=%s: %v", attempts[i].AttemptID, err)
				continue
			}
			total++
		}
	}

	log.Printf("回填完成，共镜像 %d 条批改结果", total)
}
