package examhistory

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labreport/labreport/internal/domain/labreport"
	"github.com/labreport/labreport/internal/platform/auth"
	"github.com/labreport/labreport/internal/platform/chart"
	"github.com/labreport/labreport/internal/platform/export"
	"github.com/labreport/labreport/internal/platform/textsource"
	"github.com/labreport/labreport/pkg/pagination"
)

type Handler struct {
	svc       *Service
	extractor *textsource.Extractor
}

func NewHandler(svc *Service, extractor *textsource.Extractor) *Handler {
	if extractor == nil {
		extractor = textsource.New(textsource.DefaultMaxBytes)
	}
	return &Handler{svc: svc, extractor: extractor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, physician, nurse, lab_tech
	read := api.Group("/lab-reports", auth.RequireRole("admin", "physician", "nurse", "lab_tech"))
	read.POST("/parse", h.Parse)
	read.GET("", h.List)
	read.GET("/metrics", h.Metrics)
	read.GET("/trends", h.Trend)
	read.GET("/trends/chart", h.TrendChart)
	read.GET("/:id", h.Get)
	read.GET("/:id/export", h.Export)

	// Write endpoints – admin, physician, lab_tech
	write := api.Group("/lab-reports", auth.RequireRole("admin", "physician", "lab_tech"))
	write.POST("", h.Ingest)
	write.DELETE("/:id", h.Delete)
}

type textRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// readDocument accepts a multipart "file" upload, a JSON {"source","text"}
// body, or a raw text/PDF body named by the "source" query parameter.
func (h *Handler) readDocument(c echo.Context) (string, string, error) {
	req := c.Request()
	ct := req.Header.Get(echo.HeaderContentType)

	var name string
	var data []byte
	switch {
	case strings.HasPrefix(ct, echo.MIMEMultipartForm):
		fh, err := c.FormFile("file")
		if err != nil {
			return "", "", echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
		}
		f, err := fh.Open()
		if err != nil {
			return "", "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		defer f.Close()
		if data, err = h.readLimited(f); err != nil {
			return "", "", err
		}
		name = fh.Filename
	case strings.HasPrefix(ct, echo.MIMEApplicationJSON):
		var body textRequest
		if err := c.Bind(&body); err != nil {
			return "", "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		name, data = body.Source, []byte(body.Text)
	default:
		var err error
		if data, err = h.readLimited(req.Body); err != nil {
			return "", "", err
		}
		name = c.QueryParam("source")
	}

	text, err := h.extractor.Extract(name, data)
	if err != nil {
		return "", "", httpError(err)
	}
	return name, text, nil
}

func (h *Handler) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, h.extractor.MaxBytes+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return data, nil
}

// profileFromQuery overrides the service defaults with age, sex and black.
func (h *Handler) profileFromQuery(c echo.Context) (labreport.Profile, error) {
	p := h.svc.DefaultProfile()
	if v := c.QueryParam("age"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "invalid age")
		}
		p.Age = age
	}
	switch strings.ToLower(c.QueryParam("sex")) {
	case "":
	case "female", "f":
		p.Female = true
	case "male", "m":
		p.Female = false
	default:
		return p, echo.NewHTTPError(http.StatusBadRequest, "sex must be female or male")
	}
	if v := c.QueryParam("black"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "invalid black flag")
		}
		p.Black = b
	}
	return p, nil
}

func (h *Handler) Parse(c echo.Context) error {
	p, err := h.profileFromQuery(c)
	if err != nil {
		return err
	}
	_, text, err := h.readDocument(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Parse(text, p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Ingest(c echo.Context) error {
	p, err := h.profileFromQuery(c)
	if err != nil {
		return err
	}
	source, text, err := h.readDocument(c)
	if err != nil {
		return err
	}
	exam, err := h.svc.Ingest(c.Request().Context(), source, text, p)
	if errors.Is(err, ErrDuplicateExam) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"message": err.Error(),
			"id":      exam.ID,
		})
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, exam)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	var items []*Exam
	var total int
	var err error
	if patient := c.QueryParam("patient"); patient != "" && !hasSearchParams(c) {
		items, total, err = h.svc.ListByPatient(ctx, patient, pg.Limit, pg.Offset)
	} else {
		params := map[string]string{}
		for _, k := range []string{"patient", "date", "from", "to", "abnormal"} {
			if v := c.QueryParam(k); v != "" {
				params[k] = v
			}
		}
		if err := validateSearchParams(params); err != nil {
			return err
		}
		items, total, err = h.svc.Search(ctx, params, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Exam{}
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, c.QueryParams(), total)
	return c.JSON(http.StatusOK, resp)
}

// searchDayLayout is the yyyy-mm-dd form of the from and to filters.
const searchDayLayout = "2006-01-02"

func validateSearchParams(params map[string]string) error {
	for _, k := range []string{"from", "to"} {
		if v, ok := params[k]; ok {
			if _, err := time.Parse(searchDayLayout, v); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, k+" must be a yyyy-mm-dd date")
			}
		}
	}
	if v, ok := params["date"]; ok {
		if _, err := ParseCollectionDate(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be a dd/mm/yyyy date")
		}
	}
	return nil
}

func hasSearchParams(c echo.Context) bool {
	for _, k := range []string{"date", "from", "to", "abnormal"} {
		if c.QueryParam(k) != "" {
			return true
		}
	}
	return false
}

func (h *Handler) examFromParam(c echo.Context) (*Exam, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	exam, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	return exam, nil
}

func (h *Handler) Get(c echo.Context) error {
	exam, err := h.examFromParam(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, exam)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Export(c echo.Context) error {
	f, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	exam, err := h.examFromParam(c)
	if err != nil {
		return err
	}
	body, err := export.Render(exam.Result, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+export.FileName(exam.CollectionDate, f)+`"`)
	return c.Blob(http.StatusOK, f.ContentType(), body)
}

func (h *Handler) trendFromQuery(c echo.Context) (*Trend, error) {
	patient := c.QueryParam("patient")
	name := c.QueryParam("name")
	if patient == "" || name == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "patient and name are required")
	}
	category := labreport.Category(c.QueryParam("category"))
	if category == "" {
		category = labreport.CategoryBiochemistry
	}
	if !category.Valid() {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid category")
	}
	t, err := h.svc.Trend(c.Request().Context(), patient, category, name)
	if err != nil {
		return nil, httpError(err)
	}
	return t, nil
}

func (h *Handler) Trend(c echo.Context) error {
	t, err := h.trendFromQuery(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) TrendChart(c echo.Context) error {
	t, err := h.trendFromQuery(c)
	if err != nil {
		return err
	}
	s := chart.Series{Title: t.Name, Unit: t.Unit}
	for _, p := range t.Points {
		s.Labels = append(s.Labels, p.Date)
		s.Values = append(s.Values, p.Value)
	}
	if t.Reference != nil {
		s.RefMin, s.RefMax = &t.Reference.Min, &t.Reference.Max
	}
	page, err := chart.Line(s)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set("Content-Security-Policy", chart.ContentSecurityPolicy)
	return c.HTMLBlob(http.StatusOK, page)
}

func (h *Handler) Metrics(c echo.Context) error {
	patient := c.QueryParam("patient")
	if patient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient is required")
	}
	ms, err := h.svc.Metrics(c.Request().Context(), patient)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ms)
}

// httpError maps domain errors to HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrExamNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateExam):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, textsource.ErrDocumentTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, textsource.ErrEmptyDocument),
		errors.Is(err, labreport.ErrInvalidProfile):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, labreport.ErrParseFailed),
		errors.Is(err, ErrIncompleteReport),
		errors.Is(err, ErrInvalidCollectionDate),
		errors.Is(err, ErrInsufficientData),
		errors.Is(err, textsource.ErrUnreadablePDF):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
