package rest

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/platform/requestctx"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	input := domain.CreateSaleInput{
		ClientID: strings.TrimSpace(req.ClientID),
		Lines:    make([]domain.SaleLineInput, 0, len(req.Lines)),
	}
	if req.SoldAt != nil {
		input.SoldAt = *req.SoldAt
	} else {
		input.SoldAt = s.now().UTC()
	}

	// A sale without an explicit discount inherits the client's standing
	// discount; walk-ins sell at full price.
	if req.DiscountPercent != nil {
		input.DiscountPercent = *req.DiscountPercent
	} else if input.ClientID != "" {
		client, err := s.store.GetClient(r.Context(), input.ClientID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		input.DiscountPercent = client.DiscountPercent
	}

	for _, line := range req.Lines {
		lineInput := domain.SaleLineInput{ProductID: line.ProductID, Qty: line.Qty}
		if line.UnitPrice != nil {
			lineInput.UnitPrice = money.Amount(*line.UnitPrice)
		} else {
			product, err := s.store.GetProduct(r.Context(), strings.TrimSpace(line.ProductID))
			if err != nil {
				s.writeError(w, err)
				return
			}
			lineInput.UnitPrice = product.Price
		}
		input.Lines = append(input.Lines, lineInput)
	}

	sale, err := domain.CreateSale(input, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.CreateSale(r.Context(), sale)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toSale(record))
}

func (s *Server) handleGetSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathValue(r, "saleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.GetSale(r.Context(), saleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSale(record))
}

func (s *Server) handleGetSaleByNumber(w http.ResponseWriter, r *http.Request) {
	number, err := pathValue(r, "number")
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.GetSaleByNumber(r.Context(), number)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSale(record))
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.SaleFilter{ClientID: strings.TrimSpace(query.Get("client_id"))}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := domain.ParseSaleStatus(raw)
		if err != nil {
			s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown sale status %q", raw))
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := parseTimeParam(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, err := parseTimeParam(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.To = to
	}

	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListSales(r.Context(), filter, pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.SalePage{
		Sales:         make([]apitypes.Sale, 0, len(page.Sales)),
		NextPageToken: page.NextPageToken,
	}
	for _, record := range page.Sales {
		out.Sales = append(out.Sales, toSale(record))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathValue(r, "saleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.CancelSale(r.Context(), saleID, s.now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSale(record))
}

// handleSalesSummary aggregates one UTC day of sales. Without a date
// parameter it reports today.
func (s *Server) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	day := s.now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			s.writeError(w, apperrors.New(apperrors.CodeBadRequest, "date must be formatted YYYY-MM-DD"))
			return
		}
		day = parsed
	}
	summary, err := s.store.SummarizeSalesForDay(r.Context(), day)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSaleSummary(summary))
}

func (s *Server) handleRecordSalePayment(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathValue(r, "saleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	payment, err := s.paymentFromRequest(r, saleID, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.RecordSalePayment(r.Context(), payment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toSale(record))
}

func (s *Server) handleListSalePayments(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathValue(r, "saleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	payments, err := s.store.ListPaymentsForSale(r.Context(), saleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.PaymentList{Payments: make([]apitypes.Payment, 0, len(payments))}
	for _, payment := range payments {
		out.Payments = append(out.Payments, toPayment(payment))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// paymentFromRequest builds a domain payment from the request body,
// stamping the recording staff member from the auth context.
func (s *Server) paymentFromRequest(r *http.Request, saleID, repairID string) (domain.Payment, error) {
	var req apitypes.RecordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		return domain.Payment{}, err
	}
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		return domain.Payment{}, err
	}
	paidAt := s.now().UTC()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	return domain.CreatePayment(domain.CreatePaymentInput{
		SaleID:     saleID,
		RepairID:   repairID,
		Amount:     money.Amount(req.Amount),
		Method:     method,
		Note:       req.Note,
		RecordedBy: requestctx.StaffIDFromContext(r.Context()),
		PaidAt:     paidAt,
	}, s.now, s.newID)
}

// handleUploadSalePhoto accepts a multipart upload with a "photo" file
// part plus optional caption, submitted_via, and telegram_file_id
// fields. Image type is sniffed from the first bytes, never trusted
// from the file name.
func (s *Server) handleUploadSalePhoto(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathValue(r, "saleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.store.GetSale(r.Context(), saleID); err != nil {
		s.writeError(w, err)
		return
	}

	// Allow some slack over the photo cap for the multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxPhotoBytes+(1<<20))
	file, _, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, domain.ErrPhotoTooLarge)
			return
		}
		s.writeError(w, domain.ErrPhotoEmpty)
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && n == 0 {
		s.writeError(w, domain.ErrPhotoEmpty)
		return
	}
	head = head[:n]
	ext, err := domain.SniffImageExtension(head)
	if err != nil {
		s.writeError(w, err)
		return
	}

	source := domain.PhotoSourceAPI
	if raw := strings.TrimSpace(r.FormValue("submitted_via")); raw != "" {
		parsed, err := domain.ParsePhotoSource(raw)
		if err != nil {
			s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown photo source %q", raw))
			return
		}
		source = parsed
	}

	photoID, err := s.newID()
	if err != nil {
		s.writeError(w, err)
		return
	}
	relPath, err := s.media.saveSalePhoto(saleID, photoID+ext, head, file)
	if err != nil {
		s.writeError(w, err)
		return
	}

	photo, err := domain.CreateSalePhoto(domain.CreateSalePhotoInput{
		SaleID:         saleID,
		FilePath:       relPath,
		Caption:        r.FormValue("caption"),
		SubmittedBy:    requestctx.StaffIDFromContext(r.Context()),
		SubmittedVia:   source,
		TelegramFileID: r.FormValue("telegram_file_id"),
	}, s.now, func() (string, error) { return photoID, nil })
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.PutSalePhoto(r.Context(), photo); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toSalePhoto(photo))
}

func (s *Server) handleListSalePhotos(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathValue(r, "saleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	photos, err := s.store.ListSalePhotos(r.Context(), saleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.SalePhotoList{Photos: make([]apitypes.SalePhoto, 0, len(photos))}
	for _, photo := range photos {
		out.Photos = append(out.Photos, toSalePhoto(photo))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// parseTimeParam accepts RFC 3339 timestamps and bare dates.
func parseTimeParam(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339, raw); err == nil {
		return value, nil
	}
	if value, err := time.Parse("2006-01-02", raw); err == nil {
		return value, nil
	}
	return time.Time{}, apperrors.Newf(apperrors.CodeBadRequest, "time %q must be RFC 3339 or YYYY-MM-DD", raw)
}
