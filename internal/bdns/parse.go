package bdns

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/david/bdns-notifier/internal/models"
)

// Detail is the normalized per-call record consumed by the pipeline.
type Detail struct {
	ExternalID       string
	Title            string
	Description      string
	PublicationDate  *time.Time
	ApplicationStart *time.Time
	ApplicationEnd   *time.Time
	IssuingBody      string
	IssuingLevel1    string
	IssuingLevel2    string
	IssuingLevel3    string
	CallType         string
	AdminType        string
	Instruments      []string
	Sectors          []string
	Budget           *float64
	PurposeID        *int
	PurposeName      string
	RegionID         *int
	RegionName       string
	RegionNames      []string // explicit regions named by the detail payload
	BeneficiaryTypes []string
	RegulationURL    string
	ApplicationURL   string
}

// Grant builds the persistable record from the detail.
func (d *Detail) Grant() models.Grant {
	return models.Grant{
		ExternalID:       d.ExternalID,
		Title:            d.Title,
		Description:      d.Description,
		PublicationDate:  d.PublicationDate,
		ApplicationStart: d.ApplicationStart,
		ApplicationEnd:   d.ApplicationEnd,
		IssuingBody:      d.IssuingBody,
		IssuingLevel1:    d.IssuingLevel1,
		IssuingLevel2:    d.IssuingLevel2,
		IssuingLevel3:    d.IssuingLevel3,
		CallType:         d.CallType,
		Instruments:      d.Instruments,
		Sectors:          d.Sectors,
		Budget:           d.Budget,
		PurposeID:        d.PurposeID,
		PurposeName:      d.PurposeName,
		RegionID:         d.RegionID,
		RegionName:       d.RegionName,
		BeneficiaryTypes: d.BeneficiaryTypes,
		BDNSURL:          GrantURL(d.ExternalID),
		RegulationURL:    d.RegulationURL,
		ApplicationURL:   d.ApplicationURL,
		Active:           true,
	}
}

// GrantURL is the public detail page for a convocatoria.
func GrantURL(externalID string) string {
	return fmt.Sprintf("https://www.infosubvenciones.es/bdnstrans/GE/es/convocatoria/%s", externalID)
}

// flexString decodes JSON values that the registry serves sometimes as a
// string and sometimes as a number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// descItem decodes catalog references served either as a bare string or
// as an object with a descripcion/nombre field.
type descItem struct {
	ID   *int
	Name string
}

func (d *descItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Name = s
		return nil
	}
	var obj struct {
		ID          *int   `json:"id"`
		Descripcion string `json:"descripcion"`
		Nombre      string `json:"nombre"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	d.ID = obj.ID
	d.Name = obj.Descripcion
	if d.Name == "" {
		d.Name = obj.Nombre
	}
	return nil
}

type rawDetail struct {
	NumeroConvocatoria flexString `json:"numeroConvocatoria"`
	Descripcion        string     `json:"descripcion"`
	Objeto             string     `json:"objeto"`
	FechaPublicacion   string     `json:"fechaPublicacion"`
	FechaRecepcion     string     `json:"fechaRecepcion"`
	// Both spellings of the application window observed across
	// registry versions.
	FechaInicioSolicitud string `json:"fechaInicioSolicitud"`
	FechaInicio          string `json:"fechaInicio"`
	FechaFinSolicitud    string `json:"fechaFinSolicitud"`
	FechaFin             string `json:"fechaFin"`
	Organo               struct {
		Nombre string `json:"nombre"`
		Nivel1 string `json:"nivel1"`
		Nivel2 string `json:"nivel2"`
		Nivel3 string `json:"nivel3"`
	} `json:"organo"`
	TipoConvocatoria   string     `json:"tipoConvocatoria"`
	TipoAdministracion string     `json:"tipoAdministracion"`
	Instrumentos       []descItem `json:"instrumentos"`
	Sectores           []descItem `json:"sectores"`
	Finalidad          struct {
		ID          *int   `json:"id"`
		Nombre      string `json:"nombre"`
		Descripcion string `json:"descripcion"`
	} `json:"finalidad"`
	Region struct {
		ID     *int   `json:"id"`
		Nombre string `json:"nombre"`
	} `json:"region"`
	Regiones            []descItem `json:"regiones"`
	Presupuesto         *float64   `json:"presupuesto"`
	PresupuestoTotal    *float64   `json:"presupuestoTotal"`
	TiposBeneficiario   []descItem `json:"tiposBeneficiario"`
	TiposBeneficiarios  []descItem `json:"tiposBeneficiarios"`
	URLBasesReguladoras string     `json:"urlBasesReguladoras"`
	SedeElectronica     string     `json:"sedeElectronica"`
}

// decodeDetail accepts both the wrapped ({"convocatoria": {...}}) and the
// unwrapped detail payload shapes.
func decodeDetail(body []byte) (*rawDetail, error) {
	var wrapper struct {
		Convocatoria json.RawMessage `json:"convocatoria"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Convocatoria) > 0 {
		body = wrapper.Convocatoria
	}
	var raw rawDetail
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func (r *rawDetail) normalize() *Detail {
	d := &Detail{
		ExternalID:       string(r.NumeroConvocatoria),
		Title:            strings.TrimSpace(r.Descripcion),
		Description:      strings.TrimSpace(r.Objeto),
		PublicationDate:  ParseDate(firstNonEmpty(r.FechaPublicacion, r.FechaRecepcion)),
		ApplicationStart: ParseDate(firstNonEmpty(r.FechaInicioSolicitud, r.FechaInicio)),
		ApplicationEnd:   ParseDate(firstNonEmpty(r.FechaFinSolicitud, r.FechaFin)),
		IssuingBody:      firstNonEmpty(r.Organo.Nombre, joinLevels(r.Organo.Nivel1, r.Organo.Nivel2, r.Organo.Nivel3)),
		IssuingLevel1:    r.Organo.Nivel1,
		IssuingLevel2:    r.Organo.Nivel2,
		IssuingLevel3:    r.Organo.Nivel3,
		CallType:         r.TipoConvocatoria,
		AdminType:        r.TipoAdministracion,
		Instruments:      itemNames(r.Instrumentos),
		Sectors:          itemNames(r.Sectores),
		PurposeID:        r.Finalidad.ID,
		PurposeName:      firstNonEmpty(r.Finalidad.Nombre, r.Finalidad.Descripcion),
		RegionID:         r.Region.ID,
		RegionName:       r.Region.Nombre,
		RegulationURL:    r.URLBasesReguladoras,
		ApplicationURL:   r.SedeElectronica,
	}

	if r.Presupuesto != nil {
		d.Budget = r.Presupuesto
	} else if r.PresupuestoTotal != nil {
		d.Budget = r.PresupuestoTotal
	}

	beneficiaries := r.TiposBeneficiario
	if len(beneficiaries) == 0 {
		beneficiaries = r.TiposBeneficiarios
	}
	d.BeneficiaryTypes = itemNames(beneficiaries)

	for _, reg := range r.Regiones {
		if reg.Name != "" {
			d.RegionNames = append(d.RegionNames, reg.Name)
		}
	}
	// Older payloads carry a single region object instead of a list.
	if len(d.RegionNames) == 0 && r.Region.Nombre != "" {
		d.RegionNames = []string{r.Region.Nombre}
	}
	if d.RegionID == nil && len(r.Regiones) > 0 {
		d.RegionID = r.Regiones[0].ID
		if d.RegionName == "" {
			d.RegionName = r.Regiones[0].Name
		}
	}

	return d
}

func itemNames(items []descItem) []string {
	var out []string
	for _, it := range items {
		if it.Name != "" {
			out = append(out, it.Name)
		}
	}
	return out
}

func joinLevels(levels ...string) string {
	var parts []string
	for _, l := range levels {
		if strings.TrimSpace(l) != "" {
			parts = append(parts, strings.TrimSpace(l))
		}
	}
	return strings.Join(parts, " - ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// dateLayouts are the shapes the registry has been observed to emit.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// ParseDate parses a registry date value. Empty or unparseable input
// resolves to nil, never to an error: a missing date is normal data.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	// Epoch milliseconds, seen on older registry versions.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 1e11 {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	return nil
}

type rawRegion struct {
	ID          int         `json:"id"`
	Descripcion string      `json:"descripcion"`
	Children    []rawRegion `json:"children"`
}

// flattenRegion walks the region tree depth-first, labelling depth 0 as a
// top-level region and everything below as a sub-region. The combined
// "CODE - NAME" description is split on the first " - "; when the
// separator is absent the raw description becomes the name and the
// numeric id the code.
func flattenRegion(out []models.Region, node rawRegion, depth int) []models.Region {
	kind := models.RegionKindTop
	if depth > 0 {
		kind = models.RegionKindSub
	}
	code, name := splitRegionDescription(node.ID, node.Descripcion)
	out = append(out, models.Region{ID: node.ID, Code: code, Name: name, Kind: kind})
	for _, child := range node.Children {
		out = flattenRegion(out, child, depth+1)
	}
	return out
}

func splitRegionDescription(id int, desc string) (code, name string) {
	if idx := strings.Index(desc, " - "); idx >= 0 {
		return strings.TrimSpace(desc[:idx]), strings.TrimSpace(desc[idx+3:])
	}
	return strconv.Itoa(id), strings.TrimSpace(desc)
}

type rawPurpose struct {
	ID          int    `json:"id"`
	Codigo      string `json:"codigo"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
}
