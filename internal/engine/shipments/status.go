package shipments

import "strings"

const (
	StatusPendingPayment       = "PENDING_PAYMENT"
	StatusPaymentConfirmed     = "PAYMENT_CONFIRMED"
	StatusAwaitingLabel        = "PAGO_AGUARDANDO_ETIQUETA"
	StatusLabelAvailable       = "LABEL_AVAILABLE"
	StatusPickupAccepted       = "COLETA_ACEITA"
	StatusInTransit            = "EM_TRANSITO"
	StatusAtDistributionCenter = "NO_CD"
	StatusOutForDelivery       = "EM_ROTA"
	StatusDelivered            = "ENTREGUE"
	StatusCancelled            = "CANCELADO"
	StatusIncident             = "OCORRENCIA"
	StatusReturned             = "DEVOLVIDO"
)

// rank orders the main line. Pickup and transit share a rank: carriers report either one first.
var rank = map[string]int{
	StatusPendingPayment:       0,
	StatusPaymentConfirmed:     1,
	StatusAwaitingLabel:        2,
	StatusLabelAvailable:       3,
	StatusPickupAccepted:       4,
	StatusInTransit:            4,
	StatusAtDistributionCenter: 5,
	StatusOutForDelivery:       6,
	StatusDelivered:            7,
}

var labels = map[string]string{
	StatusPendingPayment:       "Aguardando pagamento",
	StatusPaymentConfirmed:     "Pagamento confirmado",
	StatusAwaitingLabel:        "Pago - aguardando etiqueta",
	StatusLabelAvailable:       "Etiqueta disponível",
	StatusPickupAccepted:       "Coleta aceita",
	StatusInTransit:            "Em trânsito",
	StatusAtDistributionCenter: "No centro de distribuição",
	StatusOutForDelivery:       "Saiu para entrega",
	StatusDelivered:            "Entregue",
	StatusCancelled:            "Cancelado",
	StatusIncident:             "Ocorrência",
	StatusReturned:             "Devolvido",
}

const genericLabel = "Em processamento"

func Normalize(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

func IsKnown(status string) bool {
	_, ok := labels[status]
	return ok
}

func IsTerminal(status string) bool {
	return status == StatusDelivered || status == StatusCancelled || status == StatusReturned
}

func isInTransit(status string) bool {
	r, ok := rank[status]
	return ok && r >= rank[StatusPickupAccepted] && r <= rank[StatusOutForDelivery]
}

// Label renders a status for people. Unknown upstream values get a generic label instead of an error.
func Label(status string) string {
	if l, ok := labels[status]; ok {
		return l
	}
	return genericLabel
}

// IsCarrierDriven reports whether carriers may report status. Everything before LABEL_AVAILABLE belongs
// to payment processing. Unknown values are treated as carrier vocabulary.
func IsCarrierDriven(status string) bool {
	if !IsKnown(status) {
		return status != ""
	}
	if r, ok := rank[status]; ok {
		return r >= rank[StatusLabelAvailable]
	}
	return true
}

// CanTransition reports whether a shipment in `from` may move to `to`. Moves never go backward on the
// main line and terminal states are final. Unknown values are accepted verbatim, but only inside the
// carrier-driven segment, so they can never be used to step back before LABEL_AVAILABLE.
func CanTransition(from, to string) bool {
	if from == to || to == "" {
		return false
	}
	if IsTerminal(from) {
		return false
	}
	if !IsKnown(to) || !IsKnown(from) {
		return IsCarrierDriven(from) && IsCarrierDriven(to)
	}

	switch to {
	case StatusCancelled:
		return true
	case StatusIncident:
		return isInTransit(from)
	case StatusReturned:
		return isInTransit(from) || from == StatusIncident
	}

	if from == StatusIncident {
		// an incident resolves back into the delivery line
		return isInTransit(to) || to == StatusDelivered
	}
	return rank[to] > rank[from]
}

// Predecessors lists every known status from which `to` is reachable. It feeds the conditional UPDATE.
func Predecessors(to string) []string {
	var from []string
	for status := range labels {
		if CanTransition(status, to) {
			from = append(from, status)
		}
	}
	return sortStatuses(from)
}

func sortStatuses(statuses []string) []string {
	order := []string{
		StatusPendingPayment, StatusPaymentConfirmed, StatusAwaitingLabel, StatusLabelAvailable,
		StatusPickupAccepted, StatusInTransit, StatusAtDistributionCenter, StatusOutForDelivery,
		StatusDelivered, StatusIncident, StatusReturned, StatusCancelled,
	}
	in := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		in[s] = true
	}
	sorted := make([]string, 0, len(statuses))
	for _, s := range order {
		if in[s] {
			sorted = append(sorted, s)
		}
	}
	return sorted
}
