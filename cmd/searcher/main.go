package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/jobstore"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/queue"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/searcher"
)

func main() {
	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          0,
		DialTimeout: time.Duration(cfg.Redis.ConnectTimeout) * time.Second,
	})
	defer rdb.Close()

	pingCtx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	jobs := jobstore.New(
		rdb,
		time.Duration(cfg.Scheduler.Search.ResultExpiration)*time.Second,
		time.Duration(cfg.Redis.OperationExpiration)*time.Second,
	)
	runner := searcher.NewRunner(cfg, repo, jobs)

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	if err := queue.Declare(ch, queue.SearchQueue); err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	// 搜索任务占满 CPU，每个 worker 同一时间只处理一个任务
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(
		queue.SearchQueue,
		"",
		false, // 手动确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}
				handleMessage(ctx, runner, msg)
			}
		}
	}()

	logger.Info("等待搜索任务...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 searcher...")
	cancel()
	wg.Wait()
	logger.Info("searcher 已成功关闭")
}

func handleMessage(ctx context.Context, runner *searcher.Runner, msg amqp.Delivery) {
	m := domain.SearchJobMessage{}
	if err := json.Unmarshal(msg.Body, &m); err != nil || m.ID == "" {
		slog.Error("搜索任务消息格式错误", slog.String("body", string(msg.Body)))
		_ = msg.Nack(false, false)
		return
	}

	slog.Info("开始执行搜索任务", slog.String("id", m.ID))
	err := runner.Run(ctx, m.ID)
	switch {
	case err == nil:
		_ = msg.Ack(false)
	case errors.Is(err, jobstore.ErrJobNotFound):
		// 任务已经过期，没有重试的意义
		slog.Warn("搜索任务不存在", slog.String("id", m.ID))
		_ = msg.Nack(false, false)
	default:
		slog.Error("搜索任务中断，重新入队", slog.String("id", m.ID), slog.String("error", err.Error()))
		_ = msg.Nack(false, true)
	}
}
