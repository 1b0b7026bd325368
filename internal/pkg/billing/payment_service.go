package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
	"github.com/ManuelReschke/PayFox/internal/pkg/gateway"
)

// PaymentService creates one-time payments through the gateway and keeps the
// local payment rows in step with the gateway.
type PaymentService struct {
	payments repository.PaymentRepository
	gateway  gateway.Client
	recorder EventRecorder
	now      func() time.Time
}

// NewPaymentService wires the service. recorder may be nil.
func NewPaymentService(payments repository.PaymentRepository, gw gateway.Client, recorder EventRecorder) *PaymentService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &PaymentService{
		payments: payments,
		gateway:  gw,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePayment validates the request, asks the gateway to create the
// payment and stores the accepted result. Nothing is written locally when
// validation or the gateway call fails.
func (s *PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*models.Payment, error) {
	in.normalize()
	if err := validateCreatePayment(&in); err != nil {
		return nil, err
	}

	localID := uuid.NewString()
	gp, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		ExternalReference: localID,
		Amount:            in.Amount,
		Currency:          in.Currency,
		Description:       in.Description,
		PaymentMethodID:   in.PaymentMethod,
		PaymentType:       in.PaymentType,
		Installments:      in.Installments,
		CardToken:         in.cardToken(),
		Payer: gateway.Payer{
			Email:                in.Payer.Email,
			FirstName:            in.Payer.FirstName,
			LastName:             in.Payer.LastName,
			IdentificationType:   in.Payer.IdentificationType,
			IdentificationNumber: in.Payer.IdentificationNumber,
		},
		IdempotencyKey: localID,
	})
	if err != nil {
		s.recorder.Record(ctx, EventGatewayError)
		log.Errorf("[Billing] Gateway rejected payment for account %d: %v", in.AccountID, err)
		return nil, apperror.Gateway("payment gateway request failed", err)
	}

	externalID := gp.ID
	now := s.now()
	payment := &models.Payment{
		ID:            localID,
		ExternalID:    &externalID,
		AccountID:     in.AccountID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Description:   in.Description,
		Status:        gateway.MapPaymentStatus(gp.Status),
		PaymentMethod: in.PaymentMethod,
		PaymentType:   models.PaymentType(in.PaymentType),
		Installments:  in.Installments,
		Metadata:      newMetadata(in.Metadata),
	}
	payment.Metadata["gateway_status"] = gp.Status
	if gp.StatusDetail != "" {
		payment.Metadata["gateway_status_detail"] = gp.StatusDetail
	}
	payment.Metadata["last_update"] = timestamp(now)

	if err := s.payments.Create(ctx, payment); err != nil {
		// The gateway already holds the payment; the webhook for it will keep
		// failing until someone restores the row.
		log.Errorf("[Billing] Payment %s accepted by gateway as %s but not stored: %v", localID, externalID, err)
		return nil, storeError(err, "payment")
	}

	s.recorder.Record(ctx, EventPaymentCreated)
	log.Infof("[Billing] Created payment %s (gateway %s) for account %d with status %s", payment.ID, externalID, payment.AccountID, payment.Status)
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *PaymentService) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]models.Payment, int64, error) {
	filter.Normalize()
	return s.payments.List(ctx, filter)
}

// CancelPayment cancels a PENDING or IN_PROCESS payment at the gateway and
// locally.
func (s *PaymentService) CancelPayment(ctx context.Context, id string, in CancelInput) (*models.Payment, error) {
	if err := validateCancel(&in); err != nil {
		return nil, err
	}
	payment, err := s.payments.GetByIDFresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending && payment.Status != models.PaymentStatusInProcess {
		return nil, apperror.Conflict(fmt.Sprintf("payment in status %s cannot be cancelled", payment.Status))
	}
	if payment.ExternalID == nil {
		return nil, apperror.Internal("payment has no gateway reference", nil)
	}

	if _, err := s.gateway.CancelPayment(ctx, *payment.ExternalID); err != nil {
		s.recorder.Record(ctx, EventGatewayError)
		log.Errorf("[Billing] Gateway cancel failed for payment %s: %v", payment.ID, err)
		return nil, apperror.Gateway("payment gateway cancel failed", err)
	}

	now := s.now()
	annotate := func(p *models.Payment) {
		p.Metadata = ensureMetadata(p.Metadata)
		p.Metadata["cancellation"] = map[string]any{
			"reason":       in.Reason,
			"actor":        actorValue(in.ActorID),
			"cancelled_at": timestamp(now),
		}
		p.Metadata["last_update"] = timestamp(now)
	}
	updated, err := s.applyPaymentStatus(ctx, payment, models.PaymentStatusCancelled, annotate)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, EventPaymentCancelled)
	log.Infof("[Billing] Cancelled payment %s", updated.ID)
	return updated, nil
}

// RefundPayment refunds an APPROVED payment, fully or partially.
func (s *PaymentService) RefundPayment(ctx context.Context, id string, in RefundInput) (*models.Payment, error) {
	if err := validateRefund(&in); err != nil {
		return nil, err
	}
	payment, err := s.payments.GetByIDFresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusApproved {
		return nil, apperror.Conflict(fmt.Sprintf("payment in status %s cannot be refunded", payment.Status))
	}
	if in.Amount != nil && in.Amount.GreaterThan(payment.Amount) {
		return nil, apperror.Validation("invalid request", map[string]string{"amount": "lte=" + payment.Amount.StringFixed(2)})
	}
	if payment.ExternalID == nil {
		return nil, apperror.Internal("payment has no gateway reference", nil)
	}

	refund, err := s.gateway.RefundPayment(ctx, *payment.ExternalID, in.Amount)
	if err != nil {
		s.recorder.Record(ctx, EventGatewayError)
		log.Errorf("[Billing] Gateway refund failed for payment %s: %v", payment.ID, err)
		return nil, apperror.Gateway("payment gateway refund failed", err)
	}

	refunded := payment.Amount
	if in.Amount != nil {
		refunded = *in.Amount
	}
	if !refund.Amount.IsZero() {
		refunded = refund.Amount
	}
	now := s.now()
	annotate := func(p *models.Payment) {
		p.Metadata = ensureMetadata(p.Metadata)
		p.Metadata["refund"] = map[string]any{
			"amount":      refunded.StringFixed(2),
			"partial":     refunded.LessThan(p.Amount),
			"reason":      in.Reason,
			"actor":       actorValue(in.ActorID),
			"refund_id":   refund.ID,
			"refunded_at": timestamp(now),
		}
		p.Metadata["last_update"] = timestamp(now)
	}
	updated, err := s.applyPaymentStatus(ctx, payment, models.PaymentStatusRefunded, annotate)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, EventPaymentRefunded)
	log.Infof("[Billing] Refunded %s %s on payment %s", refunded.StringFixed(2), updated.Currency, updated.ID)
	return updated, nil
}

// Reconcile re-reads the payment from the gateway and applies it to the local
// row. Repeating it without a gateway-side change only touches
// metadata.last_update.
func (s *PaymentService) Reconcile(ctx context.Context, externalID string) (*models.Payment, error) {
	gp, err := s.gateway.GetPayment(ctx, externalID)
	if err != nil {
		s.recorder.Record(ctx, EventGatewayError)
		return nil, apperror.Gateway("payment gateway lookup failed", err)
	}
	return s.applyGatewayPayment(ctx, gp, true)
}

func (s *PaymentService) applyGatewayPayment(ctx context.Context, gp *gateway.Payment, retry bool) (*models.Payment, error) {
	payment, err := s.payments.GetByExternalID(ctx, gp.ID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			log.Warnf("[Billing] Gateway payment %s has no local row yet", gp.ID)
		}
		return nil, err
	}

	now := s.now()
	target := gateway.MapPaymentStatus(gp.Status)
	payment.Metadata = ensureMetadata(payment.Metadata)

	// Terminal rows stay put. A non-terminal target that is not an edge from
	// the stored status (a stale report or an unmapped gateway string) is
	// recorded but not applied.
	refused := !target.IsTerminal() && !CanTransitionPayment(payment.Status, target)
	if payment.Status == target || payment.Status.IsTerminal() || refused {
		if payment.Status != target {
			log.Warnf("[Billing] Payment %s stays %s; ignoring gateway status %q (%s)", payment.ID, payment.Status, gp.Status, target)
			payment.Metadata["gateway_reported_status"] = gp.Status
		}
		payment.Metadata["last_update"] = timestamp(now)
		if err := s.payments.UpdateMetadata(ctx, payment); err != nil {
			return nil, err
		}
		s.recorder.Record(ctx, EventReconcileNoop)
		return payment, nil
	}

	if !CanTransitionPayment(payment.Status, target) {
		log.Warnf("[Billing] Payment %s moves %s -> %s outside the status graph; applying terminal gateway state", payment.ID, payment.Status, target)
	}

	from := payment.Status
	payment.Status = target
	payment.Metadata["gateway_status"] = gp.Status
	payment.Metadata["gateway_status_detail"] = gp.StatusDetail
	payment.Metadata["last_update"] = timestamp(now)

	err = s.payments.UpdateStatus(ctx, payment, from)
	if errors.Is(err, repository.ErrStaleWrite) {
		if retry {
			return s.applyGatewayPayment(ctx, gp, false)
		}
		return nil, apperror.Conflict("payment changed concurrently")
	}
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, EventReconciled)
	log.Infof("[Billing] Reconciled payment %s: %s -> %s", payment.ID, from, target)
	return payment, nil
}

// applyPaymentStatus writes an explicit transition. When a webhook already
// moved the row to the same target the annotation is still recorded.
func (s *PaymentService) applyPaymentStatus(ctx context.Context, payment *models.Payment, target models.PaymentStatus, annotate func(*models.Payment)) (*models.Payment, error) {
	from := payment.Status
	payment.Status = target
	annotate(payment)

	err := s.payments.UpdateStatus(ctx, payment, from)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, repository.ErrStaleWrite) {
		return nil, err
	}

	current, err := s.payments.GetByIDFresh(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if current.Status != target {
		log.Warnf("[Billing] Payment %s changed to %s while moving to %s", payment.ID, current.Status, target)
		return nil, apperror.Conflict(fmt.Sprintf("payment is now in status %s", current.Status))
	}
	annotate(current)
	if err := s.payments.UpdateMetadata(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// storeError turns a repository failure on insert into a service error.
func storeError(err error, what string) error {
	if errors.Is(err, repository.ErrDuplicateKey) {
		return apperror.Conflict(what + " already exists")
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal("store "+what, err)
}
