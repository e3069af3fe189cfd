package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"qrattendance/internal/apperror"
	"qrattendance/internal/middleware"
)

const dateLayout = "2006-01-02"

// accepted layouts for check-in/check-out timestamps
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	}
}

var validationKeys = map[string]string{
	"required": "validation.required",
	"email":    "validation.email",
	"min":      "validation.min",
	"max":      "validation.max",
	"gte":      "validation.between",
	"lte":      "validation.between",
	"gt":       "validation.invalid",
	"eqfield":  "validation.confirmed",
	"datetime": "validation.date",
}

// bindingError turns a gin binding failure into a validation error keyed by
// request field names.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := map[string][]string{}
		for _, fe := range verrs {
			field := fe.Field()
			key, ok := validationKeys[fe.Tag()]
			if !ok {
				key = "validation.invalid"
			}
			if fe.Tag() == "eqfield" {
				field = strings.TrimSuffix(field, "_confirmation")
			}
			fields[field] = append(fields[field], key)
		}
		return apperror.ValidationFields(fields)
	}
	// malformed JSON or a value of the wrong type
	return apperror.Validation("body", "validation.invalid")
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.AbortWithError(c, bindingError(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		middleware.AbortWithError(c, bindingError(err))
		return false
	}
	return true
}

func pathID(c *gin.Context, name, notFoundKey string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.AbortWithError(c, apperror.NotFound(notFoundKey))
		return 0, false
	}
	return id, true
}

func parseDate(fields map[string][]string, name string, value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, *value, time.UTC)
	if err != nil {
		fields[name] = append(fields[name], "validation.date")
		return nil
	}
	return &t
}

func parseTimestamp(fields map[string][]string, name string, value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, *value, time.UTC); err == nil {
			return &t
		}
	}
	fields[name] = append(fields[name], "validation.date")
	return nil
}

func fieldsError(fields map[string][]string) error {
	if len(fields) == 0 {
		return nil
	}
	return apperror.ValidationFields(fields)
}
