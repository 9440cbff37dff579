package seed

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

// 表头中除了这些信息列，其余列依次是周一到周日
var infoHeaders = []string{"NetID", "姓名", "邮箱", "工时上限", "优先级", "F1"}

var dayHeaders = []string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

type Record struct {
	User   *domain.User
	Worker *domain.Worker
}

type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CreateAssistant(ctx context.Context, user *domain.User, worker *domain.Worker) error
	UpsertWorker(ctx context.Context, w *domain.Worker) error
}

// Parse 读取空闲时间表。每一天的单元格是若干个用 ";" 分隔的 "HH:MM-HH:MM" 空闲时间段
func Parse(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	columns := make(map[string]int, len(headers))
	for i, header := range headers {
		columns[strings.TrimSpace(header)] = i
	}
	for _, header := range append(append([]string{}, infoHeaders...), dayHeaders...) {
		if _, ok := columns[header]; !ok {
			return nil, fmt.Errorf("没有找到 %q 列", header)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("读取第 %d 行失败: %w", line, err)
		}

		record, err := parseRow(row, columns)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func parseRow(row []string, columns map[string]int) (Record, error) {
	get := func(header string) string {
		return strings.TrimSpace(row[columns[header]])
	}

	user := &domain.User{
		Username: get("NetID"),
		FullName: get("姓名"),
		Email:    get("邮箱"),
		Role:     domain.RoleAssistant,
	}
	if user.Username == "" {
		return Record{}, errors.New("NetID 不能为空")
	}

	maxHours, err := strconv.ParseFloat(get("工时上限"), 64)
	if err != nil || maxHours < 0 {
		return Record{}, fmt.Errorf("工时上限 %q 格式错误", get("工时上限"))
	}
	priority, err := strconv.Atoi(get("优先级"))
	if err != nil || priority < 0 {
		return Record{}, fmt.Errorf("优先级 %q 格式错误", get("优先级"))
	}

	week := timegrid.BusyWeek()
	for day, header := range dayHeaders {
		bits := []byte(week[day])
		for _, rng := range strings.Split(get(header), ";") {
			if strings.TrimSpace(rng) == "" {
				continue
			}
			start, end, err := timegrid.ParseClockRange(rng)
			if err != nil {
				return Record{}, fmt.Errorf("%s: %w", header, err)
			}
			for slot := start; slot < end; slot++ {
				bits[slot] = '0'
			}
		}
		week[day] = string(bits)
	}

	return Record{
		User: user,
		Worker: &domain.Worker{
			FullName:     user.FullName,
			Availability: week,
			Params: domain.WorkerParams{
				MaxHours: maxHours,
				Priority: priority,
				F1Status: get("F1") == "是",
			},
		},
	}, nil
}

// Import 把记录写入数据库：新助理用给定的密码哈希创建账号，已有账号只覆盖空闲时间和排班参数
func Import(ctx context.Context, s Store, records []Record, passwordHash string) (int, error) {
	cnt := 0
	for _, record := range records {
		user, err := s.GetUserByUsername(ctx, record.User.Username)
		switch {
		case err == nil:
			record.Worker.UserID = user.ID
			record.Worker.FullName = user.FullName
			if err := s.UpsertWorker(ctx, record.Worker); err != nil {
				return cnt, fmt.Errorf("更新助理 %s 失败: %w", user.Username, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			record.User.PasswordHash = passwordHash
			if err := s.CreateAssistant(ctx, record.User, record.Worker); err != nil {
				return cnt, fmt.Errorf("插入助理 %s 失败: %w", record.User.Username, err)
			}
		default:
			return cnt, fmt.Errorf("获取助理 %s 失败: %w", record.User.Username, err)
		}

		slog.Debug("已导入助理", slog.String("username", record.User.Username))
		cnt++
	}

	return cnt, nil
}
