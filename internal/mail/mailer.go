package mail

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"

	"shopline/internal/domain"
	"shopline/internal/log"
	"shopline/internal/metrics"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// Mailer is the notification transport seam. The saga only knows these two
// sends; swapping in a real SMTP or API transport is a Mailer away.
type Mailer interface {
	OrderPlaced(order domain.Order, items []domain.OrderItem) error
	OrderStatus(order domain.Order, status string) error
}

// TemplateMailer renders the embedded HTML templates and hands the result to
// a delivery function. The default delivery logs the send, which is enough
// for local runs and tests.
type TemplateMailer struct {
	engine  *html.Engine
	deliver func(to, subject, body string) error
}

func NewTemplateMailer(deliver func(to, subject, body string) error) (*TemplateMailer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, err
	}

	m := &TemplateMailer{engine: engine, deliver: deliver}
	if m.deliver == nil {
		m.deliver = logDelivery
	}
	return m, nil
}

func logDelivery(to, subject, body string) error {
	log.Saga("email.deliver", "", nil, map[string]any{
		"to": to, "subject": subject, "bytes": len(body),
	})
	return nil
}

func (m *TemplateMailer) OrderPlaced(order domain.Order, items []domain.OrderItem) error {
	body, err := m.render("order_placed", map[string]any{
		"Name":  order.CustomerName,
		"Order": order,
		"Items": items,
	})
	if err != nil {
		return err
	}
	if err := m.deliver(order.CustomerEmail, "Order confirmed: "+order.ID, body); err != nil {
		return err
	}
	metrics.EmailsSent.WithLabelValues("placed").Inc()
	return nil
}

func (m *TemplateMailer) OrderStatus(order domain.Order, status string) error {
	body, err := m.render("order_status", map[string]any{
		"Name":   order.CustomerName,
		"Order":  order,
		"Status": status,
	})
	if err != nil {
		return err
	}
	if err := m.deliver(order.CustomerEmail, "Order "+order.ID+" is "+status, body); err != nil {
		return err
	}
	metrics.EmailsSent.WithLabelValues("status").Inc()
	return nil
}

func (m *TemplateMailer) render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
