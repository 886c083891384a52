package http

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/vantutran2k1/elements/internal/element"
)

// elementRequest is the body of POST and PUT. Ids and timestamps sent by
// the client are ignored.
type elementRequest struct {
	ParentID *int64 `json:"parentId"`
	OwnerID  string `json:"ownerId"`
	Type     string `json:"type"`
	Name     string `json:"name"`
}

// validate reports every missing required field at once.
func (req elementRequest) validate() error {
	var result *multierror.Error

	if strings.TrimSpace(req.OwnerID) == "" {
		result = multierror.Append(result, errors.New("ownerId is required"))
	}
	if strings.TrimSpace(req.Type) == "" {
		result = multierror.Append(result, errors.New("type is required"))
	}
	if strings.TrimSpace(req.Name) == "" {
		result = multierror.Append(result, errors.New("name is required"))
	}

	if result != nil {
		result.ErrorFormat = listFormat
	}
	return result.ErrorOrNil()
}

func (req elementRequest) element(id int64) element.Element {
	return element.Element{
		ID:       id,
		ParentID: req.ParentID,
		OwnerID:  req.OwnerID,
		Type:     req.Type,
		Name:     req.Name,
	}
}

func listFormat(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return "invalid element: " + strings.Join(msgs, "; ")
}
