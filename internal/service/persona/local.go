package persona

import "context"

// Backend is an in-process persona service speaking the same wire types.
type Backend interface {
	Greeting(ctx context.Context) (GreetingResponse, error)
	Respond(ctx context.Context, req RespondRequest) (RespondResponse, error)
}

// LocalClient adapts a Backend to the Client contract without a network hop.
type LocalClient struct {
	backend Backend
}

func NewLocalClient(backend Backend) *LocalClient {
	return &LocalClient{backend: backend}
}

func (c *LocalClient) Greeting(ctx context.Context) (Greeting, error) {
	resp, err := c.backend.Greeting(ctx)
	if err != nil {
		return Greeting{}, err
	}
	return greetingFromWire(resp)
}

func (c *LocalClient) Reply(ctx context.Context, req ReplyRequest) (Reply, error) {
	resp, err := c.backend.Respond(ctx, RespondRequest{
		Message:             req.Utterance,
		ConversationHistory: req.History,
		ScenarioID:          req.ScenarioID,
		MessageCount:        req.MessageCount,
	})
	if err != nil {
		return Reply{}, err
	}
	return replyFromWire(resp, req.MessageCount)
}
