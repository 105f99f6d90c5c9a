package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
	"github.com/wfunc/highscore-api/internal/middleware"
	"github.com/wfunc/highscore-api/internal/service"
)

// topScoresLimit 排行榜固定条数，不接受客户端参数
const topScoresLimit = 100

// HighScoreHandler 高分榜处理器
//
// 处理器不直接写错误响应，错误统一交给 middleware.ErrorHandler。
type HighScoreHandler struct {
	highScoreService service.HighScoreService
}

// NewHighScoreHandler 创建高分榜处理器
func NewHighScoreHandler(highScoreService service.HighScoreService) *HighScoreHandler {
	return &HighScoreHandler{
		highScoreService: highScoreService,
	}
}

// Create 提交分数
// @Summary 提交分数
// @Tags HighScores
// @Accept json
// @Produce json
// @Param request body models.HighScoreInput true "分数"
// @Success 201 {object} models.HighScore
// @Failure 400 {object} errors.ValidationResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/highscores [post]
func (h *HighScoreHandler) Create(c *gin.Context) {
	input, ok := middleware.GetHighScoreInput(c)
	if !ok {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidParam, "缺少已校验的输入"))
		c.Abort()
		return
	}

	record, err := h.highScoreService.Create(c.Request.Context(), input)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, record)
}

// List 排行榜
// @Summary 排行榜
// @Description 按分数降序返回前100条记录
// @Tags HighScores
// @Produce json
// @Success 200 {array} models.HighScore
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/highscores [get]
func (h *HighScoreHandler) List(c *gin.Context) {
	scores, err := h.highScoreService.GetTopScores(c.Request.Context(), topScoresLimit)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, scores)
}

// Get 查询单条记录
// @Summary 查询单条记录
// @Tags HighScores
// @Produce json
// @Param id path int true "记录ID"
// @Success 200 {object} models.HighScore
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /api/highscores/{id} [get]
func (h *HighScoreHandler) Get(c *gin.Context) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil && !isUintOverflow(err) {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidParam, "id="+raw).WithMessage("Invalid ID format"))
		c.Abort()
		return
	}

	// 超出自增列范围的ID不可能存在
	if err != nil || id > math.MaxInt32 {
		h.notFound(c, raw)
		return
	}

	record, err := h.highScoreService.GetByID(c.Request.Context(), uint(id))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	if record == nil {
		h.notFound(c, raw)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *HighScoreHandler) notFound(c *gin.Context, id string) {
	_ = c.Error(apperrors.Newf(apperrors.ErrNotFound, "id=%s", id).
		WithMessage("High score with ID " + id + " not found"))
	c.Abort()
}

func isUintOverflow(err error) bool {
	var numErr *strconv.NumError
	return errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange)
}
