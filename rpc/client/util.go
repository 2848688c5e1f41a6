package client

import (
	"fmt"

	"github.com/tessera-db/tessera/rpc/common"
	"github.com/tessera-db/tessera/rpc/serializer"
)

var (
	Logger = common.GetLogger("rpc/client")
)

// sendFunc sends one serialized request and returns the raw response.
// Satisfied by both transport.IRPCClientTransport.Send and
// transport.ISession.Send / SendAwait.
type sendFunc func(req []byte) ([]byte, error)

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a request message, a send function and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type
// of the response is the expected type
func invokeRPCRequest(req *common.Message, send sendFunc, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := send(reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("rpc client - error: %s", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		if typed := common.ResponseError(resp); typed != nil {
			return nil, typed
		}
		return nil, fmt.Errorf("rpc client - error: %s", resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("rpc client - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}
