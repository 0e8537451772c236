package common

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Domain binding rules registered on gin's validator engine so struct
// tags can use them anywhere.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("vehicletype", validVehicleType)
	}
}

// validVehicleType accepts the priced vehicle classes.
func validVehicleType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "cab", "auto", "bike":
		return true
	}
	return false
}
