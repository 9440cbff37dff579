package utils

import (
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "庆",
	"建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	var b strings.Builder
	b.WriteString(commonSurnames[rand.Intn(len(commonSurnames))])
	for i := rand.Intn(2) + 1; i > 0; i-- {
		b.WriteString(commonNameCharacters[rand.Intn(len(commonNameCharacters))])
	}
	return b.String()
}

var digits = "0123456789"

// GenerateUsernameFromChineseName 取每个字拼音的随机前缀，再加上 1~3 位数字
func GenerateUsernameFromChineseName(chineseName string) string {
	var b strings.Builder
	for _, py := range pinyin.LazyConvert(chineseName, nil) {
		b.WriteString(py[:rand.Intn(len(py))+1])
	}
	for i := rand.Intn(3) + 1; i > 0; i-- {
		b.WriteByte(digits[rand.Intn(len(digits))])
	}
	return b.String()
}

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         domain.RoleAssistant,
	}, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	password := make([]rune, length)
	for i := range password {
		password[i] = letters[rand.Intn(len(letters))]
	}
	return string(password)
}

// GenerateRandomAvailability 每天随机放出若干段 1~4 小时的空闲时间，都落在 08:00 - 21:00 之间
func GenerateRandomAvailability() []string {
	week := timegrid.BusyWeek()
	for d := range week {
		bits := []byte(week[d])
		for blocks := rand.Intn(4); blocks > 0; blocks-- {
			length := (rand.Intn(4) + 1) * timegrid.SlotsPerHour
			start := 32 + rand.Intn(84-32-length+1)
			for slot := start; slot < start+length; slot++ {
				bits[slot] = '0'
			}
		}
		week[d] = string(bits)
	}
	return week
}

func GenerateRandomWorkerParams() domain.WorkerParams {
	return domain.WorkerParams{
		MaxHours: float64(rand.Intn(17) + 4),
		Priority: rand.Intn(4),
		F1Status: rand.Intn(5) == 0,
	}
}

func GenerateRandomWorker(user *domain.User) *domain.Worker {
	return &domain.Worker{
		UserID:       user.ID,
		FullName:     user.FullName,
		Availability: GenerateRandomAvailability(),
		Params:       GenerateRandomWorkerParams(),
	}
}
