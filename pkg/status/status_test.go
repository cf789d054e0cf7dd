package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/plgd-dev/go-coap/v3/message/codes"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Errorf(codes.NotFound, "object %d", 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected %v to match ErrNotFound", err)
	}
	if errors.Is(err, ErrBadRequest) {
		t.Errorf("did not expect %v to match ErrBadRequest", err)
	}

	wrapped := fmt.Errorf("read /42: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Errorf("expected wrapped error to match ErrNotFound")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.Empty},
		{"sentinel", ErrMethodNotAllowed, codes.MethodNotAllowed},
		{"wrapped", fmt.Errorf("%w: bad", ErrBadRequest), codes.BadRequest},
		{"plain", errors.New("boom"), codes.InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSuccess(t *testing.T) {
	if !IsSuccess(codes.Content) || !IsSuccess(codes.Changed) {
		t.Error("2.xx codes should be successful")
	}
	if IsSuccess(codes.NotFound) || IsSuccess(codes.GET) {
		t.Error("non 2.xx codes should not be successful")
	}
}

func TestClassString(t *testing.T) {
	if got := ClassString(codes.NotFound); got != "4.04" {
		t.Errorf("ClassString(NotFound) = %q, want 4.04", got)
	}
	if got := ClassString(codes.Content); got != "2.05" {
		t.Errorf("ClassString(Content) = %q, want 2.05", got)
	}
}

func TestErrorMessage(t *testing.T) {
	if New(codes.BadRequest, "").Error() != codes.BadRequest.String() {
		t.Error("empty message should render just the code")
	}
	if got := New(codes.BadRequest, "pmin").Error(); got != codes.BadRequest.String()+": pmin" {
		t.Errorf("Error() = %q", got)
	}
}
