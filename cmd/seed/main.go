package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/seed"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/utils"
)

func main() {
	var op int
	var n int
	var hours float64
	var minStaff int
	var iterations int

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机助理, 2: 随机化所有助理的空闲时间, 3: 导入真实数据, 4: 对所有助理进行一次批量搜索)")
	flag.IntVar(&n, "n", 5, "要插入的助理数量")
	flag.Float64Var(&hours, "hours", 40, "批量搜索的总工时")
	flag.IntVar(&minStaff, "min-staff", 1, "批量搜索时每个时间片的最少人数")
	flag.IntVar(&iterations, "iterations", 1000, "批量搜索的次数")
	flag.Parse()

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)
	ctx = context.Background()

	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的助理数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
			if err != nil {
				slog.Error("无法生成随机用户", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateAssistant(ctx, user, utils.GenerateRandomWorker(user)); err != nil {
				slog.Error("无法插入助理", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入助理成功", slog.Int("count", cnt))
	case 2:
		workers, err := repo.GetAllWorkers(ctx)
		if err != nil {
			slog.Error("无法获取所有助理", slog.String("error", err.Error()))
			return
		}

		cnt := 0
		for _, w := range workers {
			w.Availability = utils.GenerateRandomAvailability()
			if err := repo.UpsertWorker(ctx, w); err != nil {
				slog.Error("无法更新空闲时间", slog.Int64("userID", w.UserID), slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("随机化空闲时间成功", slog.Int("count", cnt))
	case 3:
		f, err := os.Open(cfg.Seed.DataFile)
		if err != nil {
			slog.Error("打开文件失败", slog.String("error", err.Error()))
			return
		}
		defer f.Close()

		records, err := seed.Parse(f)
		if err != nil {
			slog.Error("解析文件失败", slog.String("error", err.Error()))
			return
		}

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.User.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("无法生成密码哈希", slog.String("error", err.Error()))
			return
		}

		cnt, err := seed.Import(ctx, repo, records, string(passwordHash))
		if err != nil {
			slog.Error("导入数据失败", slog.Int("imported", cnt), slog.String("error", err.Error()))
			return
		}

		slog.Info("导入数据完成", slog.Int("count", cnt))
	case 4:
		workers, err := repo.GetAllWorkers(ctx)
		if err != nil {
			slog.Error("无法获取所有助理", slog.String("error", err.Error()))
			return
		}
		if err := utils.ValidateWorkersForScheduling(workers, hours); err != nil {
			slog.Error("无法排班", slog.String("error", err.Error()))
			return
		}

		p, err := scheduler.ParametersFromConfig(cfg, hours, minStaff)
		if err != nil {
			slog.Error("排班参数错误", slog.String("error", err.Error()))
			return
		}
		s, err := scheduler.New(p, workers)
		if err != nil {
			slog.Error("无法创建排班器", slog.String("error", err.Error()))
			return
		}

		result, err := s.Search(ctx, scheduler.SearchOptions{
			Iterations:  iterations,
			TopK:        5,
			Parallelism: cfg.Scheduler.Search.Parallelism,
		})
		if err != nil {
			slog.Error("批量搜索失败", slog.String("error", err.Error()))
			return
		}

		h := result.BestHistogram
		fmt.Printf("完成 %d 次排班，用时 %s，超出工时上限 %d 次\n", result.Iterations, result.Elapsed, result.HourCapViolations)
		fmt.Printf("最优结果覆盖情况：0 人 %d，1 人 %d，2 人 %d，3 人及以上 %d\n", h.Zero, h.One, h.Two, h.ThreePlus)
		for i, c := range result.Top {
			fmt.Printf("#%d 代价 %d\n", i+1, c.Cost)
		}
	default:
		slog.Error("指定的操作非法")
	}
}
