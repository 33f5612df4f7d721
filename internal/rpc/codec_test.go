package rpc

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
)

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodecPlainMessages(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&User{Id: 7, Name: "Eve", Email: "eve@example.com", Age: 33})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"Eve","email":"eve@example.com","age":33}`, string(data))

	var u User
	require.NoError(t, c.Unmarshal(data, &u))
	assert.Equal(t, User{Id: 7, Name: "Eve", Email: "eve@example.com", Age: 33}, u)
}

func TestCodecProtoMessages(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.NoError(t, c.Unmarshal(data, &emptypb.Empty{}))
}

func TestModelConversion(t *testing.T) {
	var nilUser *User
	assert.Nil(t, nilUser.ToModel())
	assert.Nil(t, FromModel(nil))

	req := &UpdateUserRequest{Id: 3, Name: "N", Email: "n@example.com", Age: 9}
	f := req.Fields()
	assert.Equal(t, "n@example.com", f.Email)
	assert.Equal(t, 9, f.Age)
}

func TestModelConversionKeepsWideAges(t *testing.T) {
	age := math.MaxInt32 + 7
	u := FromModel(&model.User{ID: 1, Name: "N", Email: "n@example.com", Age: age})

	data, err := jsonCodec{}.Marshal(u)
	require.NoError(t, err)
	var back User
	require.NoError(t, jsonCodec{}.Unmarshal(data, &back))
	assert.Equal(t, age, back.ToModel().Age)
}

func TestServiceDescMatchesProto(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "proto", ServiceDesc.Metadata.(string)))
	require.NoError(t, err)
	contract := string(data)

	assert.Contains(t, contract, "package usersvc.v1;")
	assert.Contains(t, contract, "service UserService {")
	for _, m := range ServiceDesc.Methods {
		assert.Contains(t, contract, "rpc "+m.MethodName+"(")
	}
	for _, st := range ServiceDesc.Streams {
		assert.Contains(t, contract, "rpc "+st.StreamName+"(")
	}
}
