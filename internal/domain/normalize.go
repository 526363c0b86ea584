package domain

import "strings"

// NormalizeStatus maps free-text status input onto the canonical enumeration.
// It is the single ingress point for status strings; callers downstream only
// ever see canonical values.
func NormalizeStatus(raw string) (TicketStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "abierto":
		return TicketStatusAbierto, true
	case "pendiente":
		return TicketStatusPendiente, true
	case "en progreso", "en_progreso", "enprogreso":
		return TicketStatusEnProgreso, true
	case "escalado":
		return TicketStatusEscalado, true
	case "finalizado":
		return TicketStatusFinalizado, true
	case "cerrado":
		return TicketStatusCerrado, true
	default:
		return "", false
	}
}

// NormalizePriority maps free-text priority input onto the stored three-level
// enumeration. "Critica" collapses to Alta: the persisted enum intentionally
// keeps three levels, so the resolver's fourth level is folded here and the
// raw value is only visible in logs.
func NormalizePriority(raw TicketPriority) (TicketPriority, bool) {
	switch strings.ToLower(strings.TrimSpace(string(raw))) {
	case "baja":
		return TicketPriorityBaja, true
	case "media":
		return TicketPriorityMedia, true
	case "alta":
		return TicketPriorityAlta, true
	case "critica", "crítica":
		return TicketPriorityAlta, true
	default:
		return "", false
	}
}
