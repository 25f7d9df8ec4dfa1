package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/agenthands/kindred/internal/apperror"
	"github.com/go-playground/validator/v10"
)

type RelationType string

const (
	RelationParent               RelationType = "parent"
	RelationChild                RelationType = "child"
	RelationSpouse               RelationType = "spouse"
	RelationSibling              RelationType = "sibling"
	RelationMaternalGrandparents RelationType = "maternal_grandparents"
	RelationPaternalGrandparents RelationType = "paternal_grandparents"
	RelationAuntUncle            RelationType = "aunt_uncle"
	RelationCousin               RelationType = "cousin"
)

var RelationTypes = []RelationType{
	RelationParent,
	RelationChild,
	RelationSpouse,
	RelationSibling,
	RelationMaternalGrandparents,
	RelationPaternalGrandparents,
	RelationAuntUncle,
	RelationCousin,
}

type Side string

const (
	SideMaternal Side = "maternal"
	SidePaternal Side = "paternal"
)

// ParentGender is the gender of the parent a side is traced through.
func (s Side) ParentGender() Gender {
	if s == SideMaternal {
		return GenderFemale
	}
	return GenderMale
}

type Options struct {
	Side        Side   `json:"side,omitempty" validate:"omitempty,oneof=maternal paternal"`
	CreatePair  bool   `json:"createPair,omitempty"`
	UncleAuntID string `json:"uncleAuntId,omitempty"`
}

type PersonInput struct {
	Name         string `json:"name" validate:"required,min=1"`
	Email        string `json:"email" validate:"required,email"`
	Gender       Gender `json:"gender,omitempty" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	BirthDate    string `json:"birthDate,omitempty"`
	TempPassword string `json:"tempPassword" validate:"required,min=8"`
}

type AddRelationRequest struct {
	ReferenceID  string       `json:"referenceId" validate:"required"`
	RelationType RelationType `json:"relationType" validate:"required,oneof=parent child spouse sibling maternal_grandparents paternal_grandparents aunt_uncle cousin"`
	Options      *Options     `json:"options,omitempty"`
	Person       *PersonInput `json:"person,omitempty"`
	Partner      *PersonInput `json:"partner,omitempty"`
}

func (r *AddRelationRequest) Side() Side {
	if r.Options == nil {
		return ""
	}
	return r.Options.Side
}

func (r *AddRelationRequest) CreatePair() bool {
	return r.Options != nil && r.Options.CreatePair
}

func (r *AddRelationRequest) UncleAuntID() string {
	if r.Options == nil {
		return ""
	}
	return r.Options.UncleAuntID
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Issue describes one failed field of a request.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Validate checks the request shape. Semantic rules (credential strength,
// per-relation prerequisites) belong to the kinship engine.
func (r *AddRelationRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Validation("Validation failed").WithInternal(err)
	}
	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		issues = append(issues, Issue{Path: path, Message: issueMessage(fe)})
	}
	return apperror.Validation("Validation failed").WithDetails(map[string]any{"issues": issues})
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

// RelationResult is the success payload of an add-relation request.
type RelationResult struct {
	FamilyID *string  `json:"familyId"`
	Nodes    []Person `json:"nodes"`
	Edges    []Edge   `json:"edges"`
}
