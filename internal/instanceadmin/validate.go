package instanceadmin

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// resourceIDPattern matches instance and cluster IDs
var resourceIDPattern = regexp.MustCompile(`^[a-z][-a-z0-9]{5,32}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		//nolint:errcheck // the tag and function are fixed
		_ = validate.RegisterValidation("resourceid", func(fl validator.FieldLevel) bool {
			return resourceIDPattern.MatchString(fl.Field().String())
		})
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// validateConfig checks a create request before it is sent. Failures are
// InvalidArgument and never reach the server.
func validateConfig(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &status.Error{Status: status.New(codes.InvalidArgument, err.Error()), Cause: err}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed '"+fe.Tag()+"'")
	}
	return &status.Error{
		Status: status.Newf(codes.InvalidArgument, "invalid %T: %s", v, strings.Join(msgs, "; ")),
		Cause:  err,
	}
}
