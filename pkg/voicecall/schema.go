package voicecall

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// SchemaLoader resolves the protobuf schema of the frames protocol.
type SchemaLoader interface {
	// LoadSchema loads the files found at path. An empty path selects the
	// built-in schema.
	LoadSchema(ctx context.Context, path string) (*protoregistry.Files, error)
}

// FileSchemaLoader loads .proto sources or serialized FileDescriptorSets
// from local files or http(s) URLs.
type FileSchemaLoader struct {
	// Client fetches http(s) schemas. Defaults to http.DefaultClient.
	Client *http.Client
}

// LoadSchema implements SchemaLoader.
func (l FileSchemaLoader) LoadSchema(ctx context.Context, path string) (*protoregistry.Files, error) {
	if path == "" {
		return BuiltinSchema()
	}
	remote := strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")

	if strings.EqualFold(filepath.Ext(path), ".proto") && !remote {
		return compileProto(ctx, filepath.Base(path), &protocompile.SourceResolver{
			ImportPaths: []string{filepath.Dir(path)},
		})
	}

	var (
		data []byte
		err  error
	)
	if remote {
		data, err = l.fetch(ctx, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("voicecall: load schema %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".proto") {
		name := filepath.Base(path)
		return compileProto(ctx, name, &protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{name: string(data)}),
		})
	}

	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("voicecall: parse descriptor set %s: %w", path, err)
	}
	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("voicecall: build descriptor set %s: %w", path, err)
	}
	return files, nil
}

func (l FileSchemaLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func compileProto(ctx context.Context, name string, resolver protocompile.Resolver) (*protoregistry.Files, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(resolver),
	}
	compiled, err := compiler.Compile(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("voicecall: compile schema %s: %w", name, err)
	}
	files := new(protoregistry.Files)
	for _, f := range compiled {
		if err := files.RegisterFile(f); err != nil {
			return nil, fmt.Errorf("voicecall: register schema %s: %w", f.Path(), err)
		}
	}
	return files, nil
}

// BuiltinSchema returns the default frames schema:
//
//	package brabble;
//	message TextFrame { uint64 id = 1; string name = 2; string text = 3; }
//	message AudioRawFrame {
//	  uint64 id = 1; string name = 2; bytes audio = 3;
//	  uint32 sample_rate = 4; uint32 num_channels = 5;
//	}
//	message TranscriptionFrame {
//	  uint64 id = 1; string name = 2; string text = 3;
//	  string user_id = 4; string timestamp = 5;
//	}
//	message Frame {
//	  oneof frame {
//	    TextFrame text = 1; AudioRawFrame audio = 2;
//	    TranscriptionFrame transcription = 3;
//	  }
//	}
func BuiltinSchema() (*protoregistry.Files, error) {
	fd, err := protodesc.NewFile(builtinSchemaFile(), nil)
	if err != nil {
		return nil, fmt.Errorf("voicecall: builtin schema: %w", err)
	}
	files := new(protoregistry.Files)
	if err := files.RegisterFile(fd); err != nil {
		return nil, fmt.Errorf("voicecall: builtin schema: %w", err)
	}
	return files, nil
}

func builtinSchemaFile() *descriptorpb.FileDescriptorProto {
	field := func(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(num),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:   typ.Enum(),
		}
	}
	oneofMessage := func(name string, num int32, typeName string) *descriptorpb.FieldDescriptorProto {
		f := field(name, num, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
		f.TypeName = proto.String(typeName)
		f.OneofIndex = proto.Int32(0)
		return f
	}
	const (
		tUint64 = descriptorpb.FieldDescriptorProto_TYPE_UINT64
		tUint32 = descriptorpb.FieldDescriptorProto_TYPE_UINT32
		tString = descriptorpb.FieldDescriptorProto_TYPE_STRING
		tBytes  = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("frames.proto"),
		Package: proto.String("brabble"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("TextFrame"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, tUint64), field("name", 2, tString), field("text", 3, tString),
				},
			},
			{
				Name: proto.String("AudioRawFrame"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, tUint64), field("name", 2, tString), field("audio", 3, tBytes),
					field("sample_rate", 4, tUint32), field("num_channels", 5, tUint32),
				},
			},
			{
				Name: proto.String("TranscriptionFrame"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, tUint64), field("name", 2, tString), field("text", 3, tString),
					field("user_id", 4, tString), field("timestamp", 5, tString),
				},
			},
			{
				Name: proto.String("Frame"),
				Field: []*descriptorpb.FieldDescriptorProto{
					oneofMessage("text", 1, ".brabble.TextFrame"),
					oneofMessage("audio", 2, ".brabble.AudioRawFrame"),
					oneofMessage("transcription", 3, ".brabble.TranscriptionFrame"),
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("frame")}},
			},
		},
	}
}

// FrameSchema is the resolved frame message and its audio fields.
type FrameSchema struct {
	Frame protoreflect.MessageDescriptor

	audio       protoreflect.FieldDescriptor
	data        protoreflect.FieldDescriptor
	sampleRate  protoreflect.FieldDescriptor
	numChannels protoreflect.FieldDescriptor
}

// NewFrameSchema checks that md has a message field "audio" whose message
// has an "audio" bytes field and integer "sample_rate" and "num_channels"
// fields.
func NewFrameSchema(md protoreflect.MessageDescriptor) (*FrameSchema, error) {
	s := &FrameSchema{Frame: md}
	s.audio = lookupField(md.Fields(), "audio")
	if s.audio == nil || s.audio.Message() == nil {
		return nil, fmt.Errorf("voicecall: schema %s has no audio message field", md.FullName())
	}
	fields := s.audio.Message().Fields()
	s.data = lookupField(fields, "audio")
	if s.data == nil || s.data.Kind() != protoreflect.BytesKind {
		return nil, fmt.Errorf("voicecall: schema %s has no audio bytes field", s.audio.Message().FullName())
	}
	s.sampleRate = lookupField(fields, "sample_rate")
	s.numChannels = lookupField(fields, "num_channels")
	for _, f := range []protoreflect.FieldDescriptor{s.sampleRate, s.numChannels} {
		if f != nil && !isInteger(f.Kind()) {
			return nil, fmt.Errorf("voicecall: schema field %s is not an integer", f.FullName())
		}
	}
	return s, nil
}

func lookupField(fields protoreflect.FieldDescriptors, name string) protoreflect.FieldDescriptor {
	if f := fields.ByName(protoreflect.Name(name)); f != nil {
		return f
	}
	return fields.ByJSONName(snakeToCamel(name))
}

func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func isInteger(k protoreflect.Kind) bool {
	switch k {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return true
	}
	return false
}

func loadSchema(ctx context.Context, loader SchemaLoader, path, message string) (*FrameSchema, error) {
	if loader == nil {
		loader = FileSchemaLoader{}
	}
	files, err := loader.LoadSchema(ctx, path)
	if err != nil {
		return nil, err
	}
	d, err := files.FindDescriptorByName(protoreflect.FullName(message))
	if err != nil {
		return nil, fmt.Errorf("voicecall: schema message %s: %w", message, err)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("voicecall: schema %s is not a message", message)
	}
	return NewFrameSchema(md)
}
