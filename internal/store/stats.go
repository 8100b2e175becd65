package store

import "tg_broadcast_bot/internal/domain"

// Stats summarizes the registry for diagnostics and the chat listing.
type Stats struct {
	Total    int
	Groups   int
	Channels int
}

// Stats counts tracked chats by kind. Supergroups count as groups; the
// distinction matters for Telegram permissions, not for reporting.
func (r *Registry) Stats() Stats {
	if r == nil {
		return Stats{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{Total: len(r.records)}
	for _, rec := range r.records {
		switch rec.Type {
		case domain.ChatTypeChannel:
			stats.Channels++
		case domain.ChatTypeGroup, domain.ChatTypeSupergroup:
			stats.Groups++
		}
	}

	return stats
}
