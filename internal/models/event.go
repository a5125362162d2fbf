package models

// Event is the backend's event snapshot as consumed by the purchase core.
type Event struct {
	ID          int64    `json:"id"`
	Name        string   `json:"nombre"`
	Description string   `json:"descripcion,omitempty"`
	Start       string   `json:"inicioEvento"`
	End         string   `json:"finEvento,omitempty"`
	Price       float64  `json:"precio"`
	Image       string   `json:"imagen,omitempty"`
	Location    string   `json:"localizacion,omitempty"`
	Capacity    int      `json:"aforo,omitempty"`
	Guests      []string `json:"invitados,omitempty"`
}
