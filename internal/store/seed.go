package store

import "github.com/david/bdns-notifier/internal/models"

// DefaultAreas are the topic groupings offered to subscribers. The
// purpose-id mapping is provisional until the matcher consumes it.
var DefaultAreas = []models.Area{
	{Name: "Investigación y Desarrollo", Description: "Proyectos de I+D+i", PurposeIDs: "17"},
	{Name: "Universidad y Formación", Description: "Ayudas universitarias, becas y contratos predoctorales", PurposeIDs: "17"},
	{Name: "Transferencia Tecnológica", Description: "Colaboración ciencia-empresa y transferencia de conocimiento", PurposeIDs: "17"},
	{Name: "Infraestructura Científica", Description: "Equipamiento e infraestructuras de investigación", PurposeIDs: "17"},
}
