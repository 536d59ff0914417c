package worker

import (
	"github.com/google/uuid"

	"github.com/die-net/webrelay/internal/httpmsg"
	"github.com/die-net/webrelay/internal/registry"
)

// Job pairs a parsed client request with the handle of the client that sent
// it. It owns no resources of its own; the client handle is closed by
// whichever worker processes the job.
type Job struct {
	ID      uuid.UUID
	Request *httpmsg.Request
	Client  registry.Handle
}

func NewJob(req *httpmsg.Request, client registry.Handle) Job {
	return Job{ID: uuid.New(), Request: req, Client: client}
}
