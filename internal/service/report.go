package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/ports"
	cacheredis "gremio-backoffice/pkg/cache/redis"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	reportKeyPrefix  = "reports:"
	reportSetKey     = "report_ids"
	defaultReportTTL = 20 * time.Minute
	progressChunk    = 500
	reportTimeout    = 5 * time.Minute
)

const (
	ReportSchedule  = "cronograma"
	ReportCashClose = "cierre_caja"
	ReportNovelties = "novedades"
)

// ReportStatus is the JSON document kept in Redis while a report is generated and downloadable.
type ReportStatus struct {
	Key      string          `json:"key"`
	Type     string          `json:"type"`
	UserID   int64           `json:"user_id"`
	TenantID domain.TenantID `json:"tenant_id"`
	Params   map[string]any  `json:"params"`
	Progress float64         `json:"progress"`
	Stage    string          `json:"stage,omitempty"`
	FileURL  *string         `json:"file_url"`
	FileName string          `json:"file_name,omitempty"`
	Error    string          `json:"error,omitempty"`
	Created  time.Time       `json:"created_at"`
}

type ReportView struct {
	ReportStatus
	CreatedAgo string `json:"created_ago"`
}

type sheet struct {
	name    string
	headers []string
	rows    [][]any
}

type reportJob struct {
	status   *ReportStatus
	fileName string
	sheets   []sheet
}

type ReportService struct {
	repos    ports.Repositories
	statuses ports.StatusStore
	files    ports.FileStorage
	notifier ports.ReportNotifier
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func NewReportService(
	repos ports.Repositories,
	statuses ports.StatusStore,
	files ports.FileStorage,
	notifier ports.ReportNotifier,
	ttl time.Duration,
	log *zap.Logger,
) *ReportService {
	if ttl <= 0 {
		ttl = defaultReportTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportService{
		repos:    repos,
		statuses: statuses,
		files:    files,
		notifier: notifier,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// StartScheduleReport exports a credit order with its installments.
func (s *ReportService) StartScheduleReport(ctx context.Context, tenant domain.TenantID, userID int64, orderID uuid.UUID) (ReportStatus, error) {
	if err := tenant.Validate(); err != nil {
		return ReportStatus{}, err
	}
	order, err := s.repos.Orders().GetOrder(ctx, tenant, orderID)
	if err != nil {
		return ReportStatus{}, domain.ExternalWrite("load credit order", err)
	}

	job := &reportJob{
		fileName: fmt.Sprintf("cronograma_%s_%s.xlsx", order.ID.String()[:8], s.now().Format("20060102_150405")),
		sheets: []sheet{
			orderSummarySheet(order),
			buildSheet("Cuotas", installmentColumns, order.Installments),
		},
	}
	return s.start(ctx, tenant, userID, ReportSchedule, map[string]any{"order_id": order.ID}, job)
}

// StartCloseReport exports the close lines, collections and balancing entry of a closed session.
func (s *ReportService) StartCloseReport(ctx context.Context, tenant domain.TenantID, userID int64, sessionID uuid.UUID) (ReportStatus, error) {
	if err := tenant.Validate(); err != nil {
		return ReportStatus{}, err
	}

	cash := s.repos.Cash()
	session, err := cash.GetSession(ctx, tenant, sessionID)
	if err != nil {
		return ReportStatus{}, domain.ExternalWrite("load cash session", err)
	}
	if session.State != domain.SessionClosed {
		return ReportStatus{}, domain.ErrSessionStillOpen.Withf("cash session %s is still open", session.ID)
	}

	collections, err := cash.ListCollections(ctx, tenant, sessionID)
	if err != nil {
		return ReportStatus{}, domain.ExternalWrite("list collections", err)
	}

	sheets := []sheet{
		closeLinesSheet(session.CloseLines),
		buildSheet("Cobranzas", collectionColumns, flattenCollections(collections)),
	}
	if session.CloseEntryID != nil {
		entry, err := s.repos.Ledger().GetEntry(ctx, tenant, *session.CloseEntryID)
		if err != nil {
			return ReportStatus{}, domain.ExternalWrite("load close entry", err)
		}
		sheets = append(sheets, buildSheet("Asiento", ledgerColumns, entry.Lines))
	}

	job := &reportJob{
		fileName: fmt.Sprintf("cierre_caja_%s_%s.xlsx", fileSafe(session.Site), s.now().Format("20060102_150405")),
		sheets:   sheets,
	}
	return s.start(ctx, tenant, userID, ReportCashClose, map[string]any{"session_id": session.ID, "site": session.Site}, job)
}

// StartNoveltyReport exports the novedades batch of one period for the payroll system.
func (s *ReportService) StartNoveltyReport(ctx context.Context, tenant domain.TenantID, userID int64, period domain.Period) (ReportStatus, error) {
	if err := tenant.Validate(); err != nil {
		return ReportStatus{}, err
	}
	if period.IsZero() {
		return ReportStatus{}, domain.ErrInvalidPeriod
	}

	novelties, err := s.repos.Novelties().ListByPeriod(ctx, tenant, period)
	if err != nil {
		return ReportStatus{}, domain.ExternalWrite("list novelties", err)
	}

	job := &reportJob{
		fileName: fmt.Sprintf("novedades_%s_%s.xlsx", period, s.now().Format("20060102_150405")),
		sheets:   []sheet{buildSheet("Novedades", noveltyColumns, novelties)},
	}
	return s.start(ctx, tenant, userID, ReportNovelties, map[string]any{"period": period.String()}, job)
}

func (s *ReportService) start(ctx context.Context, tenant domain.TenantID, userID int64, typ string, params map[string]any, job *reportJob) (ReportStatus, error) {
	status := &ReportStatus{
		Key:      reportKeyPrefix + uuid.NewString(),
		Type:     typ,
		UserID:   userID,
		TenantID: tenant,
		Params:   params,
		Stage:    "queued",
		Created:  s.now(),
	}
	if err := s.save(ctx, status); err != nil {
		return ReportStatus{}, domain.ExternalWrite("save report status", err)
	}
	job.status = status
	snapshot := *status

	s.wg.Add(1)
	go s.run(context.WithoutCancel(ctx), job)

	return snapshot, nil
}

// Wait blocks until every report started so far has finished.
func (s *ReportService) Wait() {
	s.wg.Wait()
}

func (s *ReportService) run(ctx context.Context, job *reportJob) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	st := job.status
	log := s.log.With(zap.String("report", st.Key), zap.String("type", st.Type), zap.Int64("user_id", st.UserID))

	data, err := s.render(ctx, job)
	if err != nil {
		s.fail(ctx, log, st, "report could not be generated", err)
		return
	}

	s.setProgress(ctx, log, st, 95, "uploading")

	name, err := s.files.Save(ctx, job.fileName, data)
	if err != nil {
		s.fail(ctx, log, st, "report upload failed", err)
		return
	}
	url, err := s.files.URL(ctx, name)
	if err != nil {
		s.fail(ctx, log, st, "report link could not be created", err)
		return
	}

	st.FileURL = &url
	st.FileName = job.fileName
	s.setProgress(ctx, log, st, 100, "ready")
	if s.notifier != nil {
		_ = s.notifier.NotifyReportComplete(ctx, st.UserID, st.Key, url, job.fileName)
	}

	log.Info("report ready", zap.String("file", name), zap.Int("bytes", len(data)))
}

func (s *ReportService) render(ctx context.Context, job *reportJob) ([]byte, error) {
	st := job.status

	f := excelize.NewFile()
	defer f.Close()

	_ = f.SetDocProps(&excelize.DocProperties{
		Creator: fmt.Sprintf("user_%d", st.UserID),
		Title:   st.Type,
	})

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, sh := range job.sheets {
		total += len(sh.rows)
	}

	done := 0
	for i, sh := range job.sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return nil, err
		}

		for col, header := range sh.headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(sh.name, cell, header); err != nil {
				return nil, err
			}
		}
		if len(sh.headers) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(sh.headers), 1)
			_ = f.SetCellStyle(sh.name, "A1", last, bold)
		}

		for r, row := range sh.rows {
			for col, v := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				if err := f.SetCellValue(sh.name, cell, v); err != nil {
					return nil, err
				}
			}

			done++
			if done%progressChunk == 0 || done == total {
				// 100 is reserved for when the file URL exists.
				progress := math.Min(math.Round(float64(done)/float64(total)*100), 95)
				s.setProgress(ctx, s.log, st, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ReportService) setProgress(ctx context.Context, log *zap.Logger, st *ReportStatus, progress float64, stage string) {
	st.Progress = progress
	st.Stage = stage
	if err := s.save(ctx, st); err != nil {
		log.Warn("report status not saved", zap.String("report", st.Key), zap.Error(err))
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyReportProgress(ctx, st.UserID, st.Key, progress, stage)
	}
}

func (s *ReportService) fail(ctx context.Context, log *zap.Logger, st *ReportStatus, msg string, err error) {
	log.Error(msg, zap.Error(err))

	st.Stage = "failed"
	st.Error = msg
	if err := s.save(ctx, st); err != nil {
		log.Warn("report status not saved", zap.Error(err))
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyReportFailed(ctx, st.UserID, st.Key, msg)
	}
}

func (s *ReportService) save(ctx context.Context, st *ReportStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.statuses.Set(ctx, st.Key, string(data), s.ttl); err != nil {
		return err
	}
	if err := s.statuses.SAdd(ctx, reportSetKey, st.Key); err != nil {
		return err
	}
	// the index outlives its newest member by one TTL
	return s.statuses.Expire(ctx, reportSetKey, s.ttl)
}

func (s *ReportService) load(ctx context.Context, key string) (*ReportStatus, error) {
	data, err := s.statuses.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var st ReportStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to parse report status %s: %w", key, err)
	}
	return &st, nil
}

// GetReports lists the caller's live reports in this tenant, newest first.
func (s *ReportService) GetReports(ctx context.Context, tenant domain.TenantID, userID int64) ([]ReportView, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	keys, err := s.statuses.SMembers(ctx, reportSetKey)
	if err != nil {
		return nil, domain.ExternalWrite("list reports", err)
	}

	var statuses []*ReportStatus
	for _, key := range keys {
		st, err := s.load(ctx, key)
		if err != nil {
			if cacheredis.IsNil(err) {
				_ = s.statuses.SRem(ctx, reportSetKey, key)
			}
			continue
		}
		if st.UserID == userID && st.TenantID == tenant {
			statuses = append(statuses, st)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	now := s.now()
	views := make([]ReportView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, ReportView{ReportStatus: *st, CreatedAgo: humanizeAgo(st.Created, now)})
	}
	return views, nil
}

// GetReport accepts the full key or the bare report uuid.
func (s *ReportService) GetReport(ctx context.Context, tenant domain.TenantID, userID int64, id string) (ReportView, error) {
	if err := tenant.Validate(); err != nil {
		return ReportView{}, err
	}

	key := id
	if !strings.HasPrefix(key, reportKeyPrefix) {
		key = reportKeyPrefix + key
	}
	if _, err := uuid.Parse(strings.TrimPrefix(key, reportKeyPrefix)); err != nil {
		return ReportView{}, domain.ErrReportNotFound
	}

	st, err := s.load(ctx, key)
	if err != nil {
		if cacheredis.IsNil(err) {
			return ReportView{}, domain.ErrReportNotFound
		}
		return ReportView{}, domain.ExternalWrite("get report", err)
	}
	if st.UserID != userID || st.TenantID != tenant {
		return ReportView{}, domain.ErrReportNotFound
	}

	return ReportView{ReportStatus: *st, CreatedAgo: humanizeAgo(st.Created, s.now())}, nil
}

func humanizeAgo(t, now time.Time) string {
	if t.After(now) {
		return "recién"
	}

	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "recién"
	}
	if minutes < 60 {
		return fmt.Sprintf("hace %d %s", minutes, plural(minutes, "minuto", "minutos"))
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("hace %d %s", hours, plural(hours, "hora", "horas"))
	}
	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("hace %d %s", days, plural(days, "día", "días"))
	}
	return t.Format("02/01/2006 15:04")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
