package api

import (
	"context"  // Context for issuance
	"net/http" // HTTP status codes
	"time"     // Timestamp formatting

	"micropaper/internal/apperr"     // Error taxonomy
	"micropaper/internal/domain"     // Importing domain models
	"micropaper/internal/middleware" // Request id helpers
	"micropaper/internal/registry"   // Issuance ledger
	"micropaper/internal/validator"  // Request validation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Issuer runs the issuance workflow
type Issuer interface {
	Issue(ctx context.Context, req validator.IssuanceRequest) (domain.IssuanceRecord, error)
}

// noteView is the wire form of an issued note
type noteView struct {
	ISIN          string `json:"isin"`
	WalletAddress string `json:"walletAddress"`
	Amount        int64  `json:"amount"`
	MaturityDate  string `json:"maturityDate"`
	Status        string `json:"status"`
	IssuedAt      string `json:"issuedAt"`
}

func toNoteView(rec domain.IssuanceRecord) noteView {
	return noteView{
		ISIN:          rec.ISIN,
		WalletAddress: rec.WalletAddress,
		Amount:        rec.Amount,
		MaturityDate:  rec.MaturityDate.UTC().Format(time.RFC3339),
		Status:        string(rec.Status),
		IssuedAt:      rec.IssuedAt.UTC().Format(time.RFC3339Nano),
	}
}

// IssueNoteHandler issues a note to a verified wallet
func IssueNoteHandler(issuer Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := middleware.GetRequestID(c)
		var req validator.IssuanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(validator.MalformedBody(err).Err()) // Rendered by ErrorEnvelope
			return
		}
		rec, err := issuer.Issue(c.Request.Context(), req)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"request_id": requestID,           // Correlation id
				"wallet":     req.WalletAddress,   // Requested wallet
				"code":       apperr.As(err).Code, // Rejection code
			}).Info("Issuance rejected")
			_ = c.Error(err) // Rendered by ErrorEnvelope
			return
		}
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,         // Correlation id
			"isin":       rec.ISIN,          // Assigned identifier
			"wallet":     rec.WalletAddress, // Holder wallet
		}).Info("Issuance accepted")
		c.JSON(http.StatusOK, gin.H{
			"isin":      rec.ISIN,                                    // Assigned identifier
			"status":    rec.Status,                                  // Always ISSUED
			"issuedAt":  rec.IssuedAt.UTC().Format(time.RFC3339Nano), // Issue timestamp
			"requestId": requestID,                                   // Correlation id
		})
	}
}

// GetNoteHandler returns a single note by ISIN
func GetNoteHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := reg.Issuance(c.Param("isin"))
		if !ok {
			_ = c.Error(apperr.NotFound("Note")) // Rendered by ErrorEnvelope
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"note":      toNoteView(rec),            // Issued note
			"requestId": middleware.GetRequestID(c), // Correlation id
		})
	}
}

// ListNotesHandler lists notes, optionally filtered by holder wallet
func ListNotesHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.Query("walletAddress")
		if address != "" {
			valid, violations := validator.ValidateAddress(address)
			if err := violations.Err(); err != nil {
				_ = c.Error(err) // Rendered by ErrorEnvelope
				return
			}
			address = valid
		}
		recs := reg.Issuances(address)
		notes := make([]noteView, 0, len(recs)) // Never null on the wire
		for _, rec := range recs {
			notes = append(notes, toNoteView(rec))
		}
		c.JSON(http.StatusOK, gin.H{
			"notes":     notes,                      // Issued notes in ledger order
			"count":     len(notes),                 // Number of notes
			"requestId": middleware.GetRequestID(c), // Correlation id
		})
	}
}
