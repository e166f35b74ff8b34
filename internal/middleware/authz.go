package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/internal/authz"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

// TargetExtractor builds the authorization target from route parameters.
type TargetExtractor func(c *gin.Context) authz.Target

// Authorize consults the policy table once, before the handler runs.
func Authorize(az *authz.Authorizer, op authz.Operation, extract TargetExtractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var target authz.Target
		if extract != nil {
			target = extract(c)
		}

		if err := az.Authorize(c.Request.Context(), ActorFrom(c), op, target); err != nil {
			httputil.RespondWithError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// NoTarget is the extractor for collection-level operations.
func NoTarget(*gin.Context) authz.Target {
	return authz.Target{}
}

// PatientIDTarget reads an internal numeric patient id from the named param.
func PatientIDTarget(param string) TargetExtractor {
	return func(c *gin.Context) authz.Target {
		if id, err := strconv.ParseInt(c.Param(param), 10, 64); err == nil {
			return authz.Target{PatientID: &id}
		}
		return authz.Target{}
	}
}

// PatientExternalTarget reads an external patient identifier from the named param.
func PatientExternalTarget(param string) TargetExtractor {
	return func(c *gin.Context) authz.Target {
		return authz.Target{PatientExternalID: c.Param(param)}
	}
}

// DoctorIDTarget reads a doctor id from the named param.
func DoctorIDTarget(param string) TargetExtractor {
	return func(c *gin.Context) authz.Target {
		if id, err := strconv.ParseInt(c.Param(param), 10, 64); err == nil {
			return authz.Target{DoctorID: &id}
		}
		return authz.Target{}
	}
}

// AppointmentIDTarget reads an appointment id from the named param.
func AppointmentIDTarget(param string) TargetExtractor {
	return func(c *gin.Context) authz.Target {
		if id, err := strconv.ParseInt(c.Param(param), 10, 64); err == nil {
			return authz.Target{AppointmentID: &id}
		}
		return authz.Target{}
	}
}
