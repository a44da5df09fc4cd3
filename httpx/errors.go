package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/mediflow/log"
)

// Handler failures are logged under a dotted code naming the failing step,
// e.g. "db.insert_form".

// LogInternalError logs err and answers 500.
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	status := http.StatusInternalServerError
	http.Error(w, http.StatusText(status), status)
}

// LogNotFound answers 404; a missing record is only worth a debug line.
func LogNotFound(w http.ResponseWriter, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	status := http.StatusNotFound
	http.Error(w, http.StatusText(status), status)
}

// LogStatus logs code at level and answers status with its default text.
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// LogStatusMsg is LogStatus with a formatted message, which is also the
// response body.
func LogStatusMsg(w http.ResponseWriter, status int, level log.Level, code string, msg string, args ...any) {
	text := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", text)
	http.Error(w, text, status)
}

// JSONStatus sends v as a JSON body with the given status.
func JSONStatus(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// ErrorBody is the JSON shape of a failure that carries details.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail any    `json:"detail,omitempty"`
}

// LogJSONError logs code at debug level and sends err as an ErrorBody.
func LogJSONError(w http.ResponseWriter, r *http.Request, status int, code string, err error, detail any) {
	log.Debugf("%s: %s", code, err)
	JSONStatus(w, r, status, ErrorBody{Error: err.Error(), Detail: detail})
}
