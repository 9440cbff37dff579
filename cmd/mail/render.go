package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
)

type mailTemplate struct {
	file    string
	subject string
	data    func() any
}

var mailTemplates = map[string]mailTemplate{
	domain.MailTypeCreateUser: {
		file:    "new_account_email.html",
		subject: "ECNC 排班系统 - 账户信息",
		data:    func() any { return &domain.CreateUserMailData{} },
	},
	domain.MailTypeSchedulePublished: {
		file:    "schedule_published_email.html",
		subject: "ECNC 排班系统 - 排班通知",
		data:    func() any { return &domain.SchedulePublishedMailData{} },
	},
}

// queuedMail 与 domain.MailMessage 对应，Data 延迟到知道邮件类型之后再解析
type queuedMail struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// renderMail 解析队列中的消息并渲染邮件正文
func renderMail(templateDir string, body []byte) (*queuedMail, string, string, error) {
	m := &queuedMail{}
	if err := json.Unmarshal(body, m); err != nil {
		return nil, "", "", fmt.Errorf("邮件信息反序列化失败: %w", err)
	}

	t, ok := mailTemplates[m.Type]
	if !ok {
		return nil, "", "", fmt.Errorf("不支持的邮件类型 %q", m.Type)
	}

	data := t.data()
	if err := json.Unmarshal(m.Data, data); err != nil {
		return nil, "", "", fmt.Errorf("邮件数据反序列化失败: %w", err)
	}

	tmpl, err := template.ParseFiles(filepath.Join(templateDir, t.file))
	if err != nil {
		return nil, "", "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, "", "", err
	}

	return m, t.subject, buf.String(), nil
}
