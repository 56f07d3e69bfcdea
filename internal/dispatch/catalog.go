package dispatch

import (
	"sort"
	"time"
)

// Режимы доставки, которые показывает TargetInfo.
const (
	ModeLocal = "local"
	ModeHTTP  = "http"
	ModeAMQP  = "amqp"
)

// TargetInfo — target, способ доставки до него и действующая политика.
type TargetInfo struct {
	Name     string
	Mode     string
	Endpoint string

	// Authenticated — для target задан токен. Сам токен не раскрывается.
	Authenticated bool

	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Describer — канал, который может перечислить свои target.
// Describe возвращает их отсортированными по имени.
type Describer interface {
	Describe() []TargetInfo
}

// describe возвращает target канала, если он их знает.
func describe(ch Channel) []TargetInfo {
	if d, ok := ch.(Describer); ok {
		return d.Describe()
	}
	return nil
}

func sortTargets(infos []TargetInfo) []TargetInfo {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Describe возвращает обработчики канала.
func (c *LocalChannel) Describe() []TargetInfo {
	names := c.Targets()
	infos := make([]TargetInfo, len(names))
	for i, name := range names {
		infos[i] = TargetInfo{Name: name, Mode: ModeLocal}
	}
	return infos
}

// Describe возвращает HTTP исполнителей. Timeout — таймаут запроса
// без дедлайна в контексте.
func (c *HTTPChannel) Describe() []TargetInfo {
	targets := c.Targets()
	infos := make([]TargetInfo, len(targets))
	for i, t := range targets {
		timeout := t.Timeout
		if timeout <= 0 {
			timeout = c.defaultTimeout
		}
		infos[i] = TargetInfo{
			Name:          t.Name,
			Mode:          ModeHTTP,
			Endpoint:      t.Endpoint,
			Authenticated: t.AuthToken != "",
			Timeout:       timeout,
		}
	}
	return infos
}

// Describe возвращает target, объявленные для агентов.
func (c *AMQPChannel) Describe() []TargetInfo {
	infos := make([]TargetInfo, len(c.targets))
	for i, name := range c.targets {
		infos[i] = TargetInfo{Name: name, Mode: ModeAMQP}
	}
	return sortTargets(infos)
}

// Describe возвращает target с явным маршрутом, затем target
// fallback-канала, которые не перекрыты маршрутами.
func (r *Router) Describe() []TargetInfo {
	r.mu.RLock()
	routes := make(map[string]Channel, len(r.routes))
	for name, ch := range r.routes {
		routes[name] = ch
	}
	fallback := r.fallback
	r.mu.RUnlock()

	infos := make([]TargetInfo, 0, len(routes))
	for name, ch := range routes {
		info := TargetInfo{Name: name}
		for _, d := range describe(ch) {
			if d.Name == name {
				info = d
				break
			}
		}
		infos = append(infos, info)
	}

	if fallback != nil {
		for _, d := range describe(fallback) {
			if _, routed := routes[d.Name]; !routed {
				infos = append(infos, d)
			}
		}
	}
	return sortTargets(infos)
}

// Describe возвращает target нижнего канала с политиками target.
func (r *Retrying) Describe() []TargetInfo {
	infos := describe(r.next)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range infos {
		p, ok := r.policies[infos[i].Name]
		if !ok {
			continue
		}
		if p.Timeout > 0 {
			infos[i].Timeout = p.Timeout
		}
		infos[i].RetryAttempts = p.RetryAttempts
		infos[i].RetryDelay = p.RetryDelay
	}
	return infos
}
