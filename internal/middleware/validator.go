package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
	"github.com/wfunc/highscore-api/internal/models"
)

// 校验失败信息
const (
	MsgNameRequired  = "Name is required and must be a non-empty string"
	MsgNameTooLong   = "Name must be at most 100 characters"
	MsgScoreRequired = "Score is required"
	MsgScoreInvalid  = "Score must be a positive integer"
	MsgScoreTooLarge = "Score must not exceed 2147483647"
)

// MaxNameLength 名称最大字符数，与表结构一致
const MaxNameLength = 100

// MaxScore 分数上限，与 INTEGER 列一致
const MaxScore = math.MaxInt32

// MaxBodyBytes 请求体上限（100kb）
const MaxBodyBytes = 100 << 10

// HighScoreInputKey 校验通过的输入在上下文中的键
const HighScoreInputKey = "highScoreInput"

// ValidateHighScore 高分提交的请求体校验
//
// 所有违规项累积后一次返回；通过后把 *models.HighScoreInput 放入上下文。
func ValidateHighScore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			code := apperrors.ErrInvalidParam
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				code = apperrors.ErrPayloadTooLarge
			}
			_ = c.Error(apperrors.Wrap(err, code, "读取请求体失败"))
			c.Abort()
			return
		}

		input, violations := ParseHighScoreInput(body)
		if len(violations) > 0 {
			_ = c.Error(apperrors.Validation(violations))
			c.Abort()
			return
		}

		c.Set(HighScoreInputKey, input)
		c.Next()
	}
}

// GetHighScoreInput 取出校验通过的输入
func GetHighScoreInput(c *gin.Context) (*models.HighScoreInput, bool) {
	value, ok := c.Get(HighScoreInputKey)
	if !ok {
		return nil, false
	}
	input, ok := value.(*models.HighScoreInput)
	return input, ok
}

// ParseHighScoreInput 解析并校验请求体
//
// 请求体不是单个 JSON 对象时（包括对象后还有多余内容）名称和分数两项同时报错。
func ParseHighScoreInput(body []byte) (*models.HighScoreInput, []string) {
	var fields map[string]json.RawMessage

	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&fields); err != nil || fields == nil {
		return nil, []string{MsgNameRequired, MsgScoreRequired}
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, []string{MsgNameRequired, MsgScoreRequired}
	}

	var violations []string
	input := &models.HighScoreInput{}

	name, msg := parseName(fields["name"])
	if msg != "" {
		violations = append(violations, msg)
	}
	input.Name = name

	score, msg := parseScore(fields["score"])
	if msg != "" {
		violations = append(violations, msg)
	}
	input.Score = score

	if len(violations) > 0 {
		return nil, violations
	}
	return input, nil
}

func parseName(raw json.RawMessage) (string, string) {
	var name string
	if len(raw) == 0 || json.Unmarshal(raw, &name) != nil || strings.TrimSpace(name) == "" {
		return "", MsgNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", MsgNameTooLong
	}
	return name, ""
}

// parseScore 数字和数字字符串都会被转换，转换后必须是非负整数
func parseScore(raw json.RawMessage) (int, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, MsgScoreRequired
	}

	var value interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return 0, MsgScoreInvalid
	}

	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return 0, MsgScoreInvalid
	}

	if text == "" {
		return 0, MsgScoreInvalid
	}

	number, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(number, 0) || math.IsNaN(number) ||
		number != math.Trunc(number) || number < 0 {
		return 0, MsgScoreInvalid
	}
	if number > MaxScore {
		return 0, MsgScoreTooLarge
	}
	return int(number), ""
}
