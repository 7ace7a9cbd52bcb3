package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/service"
)

// defaultSeats is used when the form has no seats field.
const defaultSeats = 1

// offerRequest is the mini app form. Numbers may arrive as strings.
type offerRequest struct {
	UserID      interface{} `json:"user_id"`
	Username    string      `json:"username"`
	DriverName  string      `json:"driver_name"`
	Destination string      `json:"destination"`
	Time        string      `json:"time"`
	Seats       interface{} `json:"seats"`
	Price       string      `json:"price"`
	Comment     string      `json:"comment"`
}

func (h *Handler) listRides(c *gin.Context) {
	ctx := c.Request.Context()

	if h.cache != nil {
		rides, err := h.cache.GetActive(ctx)
		if err != nil {
			h.log.Warning("rides cache read failed", logger.Error(err))
		}
		if rides != nil {
			c.JSON(http.StatusOK, rides)
			return
		}
	}

	rides, err := h.svc.Ride().ListActiveRides(ctx)
	if err != nil {
		h.log.Error("failed to list rides", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rides == nil {
		rides = []*models.Ride{}
	}

	if h.cache != nil {
		if err := h.cache.SetActive(ctx, rides); err != nil {
			h.log.Warning("rides cache write failed", logger.Error(err))
		}
	}
	c.JSON(http.StatusOK, rides)
}

func (h *Handler) createOffer(c *gin.Context) {
	ctx := c.Request.Context()

	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, err := cast.ToInt64E(req.UserID)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	seats := defaultSeats
	if req.Seats != nil {
		if seats, err = cast.ToIntE(req.Seats); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid seats"})
			return
		}
	}
	in, err := service.ValidateRide(models.RideInput{
		Destination: req.Destination,
		Time:        req.Time,
		Seats:       seats,
		Price:       req.Price,
		Comment:     req.Comment,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	ok, err := h.checker.IsSubscribed(ctx, userID)
	if err != nil {
		h.log.Warning("subscription check failed", logger.Int64("user_id", userID), logger.Error(err))
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	if _, err := h.svc.User().EnsureDriver(ctx, userID, req.Username, req.DriverName); err != nil {
		h.fail(c, err)
		return
	}
	ride, err := h.svc.Ride().CreateRide(ctx, userID, in)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			h.log.Warning("rides cache invalidate failed", logger.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": ride.ID})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, apperr.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err)})
		return
	}
	h.log.Error("failed to create offer", logger.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
