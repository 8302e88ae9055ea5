package models

// Status of a service. The five non-terminal values have no enforced order
// between them; only ENTREGUE is terminal.
type Status string

const (
	StatusEmEspera           Status = "EM_ESPERA"
	StatusEsperandoLiberacao Status = "ESPERANDO_LIBERACAO"
	StatusEmManutencao       Status = "EM_MANUTENCAO"
	StatusEsperandoPeca      Status = "ESPERANDO_PECA"
	StatusPronto             Status = "PRONTO"
	StatusEntregue           Status = "ENTREGUE"
)

// AllStatuses lists every status. Tests iterate it to keep the label/tone
// tables exhaustive when a status is added.
var AllStatuses = []Status{
	StatusEmEspera,
	StatusEsperandoLiberacao,
	StatusEmManutencao,
	StatusEsperandoPeca,
	StatusPronto,
	StatusEntregue,
}

func (s Status) Valid() bool {
	switch s {
	case StatusEmEspera, StatusEsperandoLiberacao, StatusEmManutencao,
		StatusEsperandoPeca, StatusPronto, StatusEntregue:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusEntregue
}

// AllowedAtCreate reports whether a new service may start in this status.
func (s Status) AllowedAtCreate() bool {
	return s == StatusEmEspera || s == StatusEmManutencao
}

// Label is the operator-facing display text for the status.
func (s Status) Label() string {
	switch s {
	case StatusEmEspera:
		return "Em espera"
	case StatusEsperandoLiberacao:
		return "Esperando liberação"
	case StatusEmManutencao:
		return "Em manutenção"
	case StatusEsperandoPeca:
		return "Esperando peça"
	case StatusPronto:
		return "Pronto"
	case StatusEntregue:
		return "Entregue"
	}
	return string(s)
}

// Tone is the badge color pair used to render a status.
type Tone struct {
	Background string `json:"bg"`
	Foreground string `json:"fg"`
}

func (s Status) Tone() Tone {
	switch s {
	case StatusEmEspera:
		return Tone{Background: "#64748B", Foreground: "#FFFFFF"}
	case StatusEsperandoLiberacao:
		return Tone{Background: "#EAB308", Foreground: "#0B0B0C"}
	case StatusEmManutencao:
		return Tone{Background: "#3B82F6", Foreground: "#FFFFFF"}
	case StatusEsperandoPeca:
		return Tone{Background: "#F97316", Foreground: "#0B0B0C"}
	case StatusPronto:
		return Tone{Background: "#A855F7", Foreground: "#FFFFFF"}
	case StatusEntregue:
		return Tone{Background: "#22C55E", Foreground: "#0B0B0C"}
	}
	return Tone{Background: "#64748B", Foreground: "#FFFFFF"}
}
