// Package bdns implements the client for the BDNS grants registry API
// (Base de Datos Nacional de Subvenciones). It fetches paginated call
// listings, per-call detail records and the region/purpose catalogs, and
// normalizes the registry's heterogeneous field names and date formats
// into the internal models.
package bdns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/david/bdns-notifier/internal/models"
)

// DefaultBaseURL is the production registry endpoint.
const DefaultBaseURL = "https://www.infosubvenciones.es/bdnstrans/api"

// Doer is the minimal HTTP client surface, satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the BDNS registry. It performs no retries itself;
// retry policy belongs to the pipeline orchestrator.
type Client struct {
	baseURL string
	http    Doer
	limiter *rate.Limiter // throttles per-item detail fetches
	log     *slog.Logger
}

// New creates a Client. detailRPS bounds the rate of Detail calls;
// zero or negative disables throttling.
func New(baseURL string, httpClient Doer, detailRPS float64, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	var limiter *rate.Limiter
	if detailRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(detailRPS), 1)
	}
	return &Client{baseURL: baseURL, http: httpClient, limiter: limiter, log: log}
}

// SearchParams narrows a listing query.
type SearchParams struct {
	Purpose   int // finalidad id, 0 = unfiltered
	From      time.Time
	To        time.Time
	RegionIDs []int
	AdminType string // C=state, A=autonomous community, L=local, O=other
	Text      string
	Page      int
	PageSize  int
}

// Summary is one row of a listing page.
type Summary struct {
	ExternalID    string
	Title         string
	ReceptionDate *time.Time
}

type rawSummary struct {
	NumeroConvocatoria flexString `json:"numeroConvocatoria"`
	Descripcion        string     `json:"descripcion"`
	FechaRecepcion     string     `json:"fechaRecepcion"`
}

// searchResponse tolerates both known spellings of the total-count field
// across registry versions.
type searchResponse struct {
	Convocatorias  []rawSummary `json:"convocatorias"`
	TotalElementos *int         `json:"totalElementos"`
	Total          *int         `json:"total"`
}

func (r *searchResponse) total() int {
	if r.TotalElementos != nil {
		return *r.TotalElementos
	}
	if r.Total != nil {
		return *r.Total
	}
	return len(r.Convocatorias)
}

// Search fetches one listing page. The caller pages by increasing
// params.Page until the returned item count is smaller than PageSize or
// the running total of consumed items reaches the returned total.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Summary, int, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("pageSize", strconv.Itoa(params.PageSize))
	q.Set("vpd", "GE")
	q.Set("order", "fechaRecepcion")
	q.Set("direccion", "desc")
	if params.Purpose != 0 {
		q.Set("finalidad", strconv.Itoa(params.Purpose))
	}
	if !params.From.IsZero() {
		q.Set("fechaDesde", params.From.Format("02/01/2006"))
	}
	if !params.To.IsZero() {
		q.Set("fechaHasta", params.To.Format("02/01/2006"))
	}
	for _, id := range params.RegionIDs {
		q.Add("regiones", strconv.Itoa(id))
	}
	if params.AdminType != "" {
		q.Set("tipoAdministracion", params.AdminType)
	}
	if params.Text != "" {
		q.Set("descripcion", params.Text)
		q.Set("descripcionTipoBusqueda", "1")
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "/convocatorias/busqueda", q, &resp); err != nil {
		return nil, 0, fmt.Errorf("searching convocatorias: %w", err)
	}

	items := make([]Summary, 0, len(resp.Convocatorias))
	for _, raw := range resp.Convocatorias {
		items = append(items, Summary{
			ExternalID:    string(raw.NumeroConvocatoria),
			Title:         raw.Descripcion,
			ReceptionDate: ParseDate(raw.FechaRecepcion),
		})
	}

	c.log.Debug("bdns search page",
		"page", params.Page, "items", len(items), "total", resp.total())
	return items, resp.total(), nil
}

// Detail fetches the full record for one convocatoria. Both known
// spellings of the id query parameter are sent so the call works across
// registry versions.
func (c *Client) Detail(ctx context.Context, externalID string) (*Detail, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("vpd", "GE")
	q.Set("numConv", externalID)
	q.Set("numeroConvocatoria", externalID)

	var body json.RawMessage
	if err := c.getJSON(ctx, "/convocatorias", q, &body); err != nil {
		return nil, fmt.Errorf("fetching detail of %s: %w", externalID, err)
	}

	raw, err := decodeDetail(body)
	if err != nil {
		return nil, fmt.Errorf("decoding detail of %s: %w", externalID, err)
	}
	detail := raw.normalize()
	if detail.ExternalID == "" {
		detail.ExternalID = externalID
	}
	return detail, nil
}

// Regions fetches the hierarchical region catalog and flattens it.
func (c *Client) Regions(ctx context.Context) ([]models.Region, error) {
	var roots []rawRegion
	if err := c.getJSON(ctx, "/regiones", nil, &roots); err != nil {
		return nil, fmt.Errorf("fetching regions: %w", err)
	}
	var out []models.Region
	for _, root := range roots {
		out = flattenRegion(out, root, 0)
	}
	return out, nil
}

// Purposes fetches the finalidad catalog.
func (c *Client) Purposes(ctx context.Context) ([]models.Purpose, error) {
	var raw []rawPurpose
	if err := c.getJSON(ctx, "/finalidades", nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching purposes: %w", err)
	}
	out := make([]models.Purpose, 0, len(raw))
	for _, p := range raw {
		name := p.Nombre
		if name == "" {
			name = p.Descripcion
		}
		out = append(out, models.Purpose{
			ID:          p.ID,
			Code:        p.Codigo,
			Name:        name,
			Description: p.Descripcion,
		})
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("registry returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
