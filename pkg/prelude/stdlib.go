// Native module namespaces beyond the bare operator table and struct/enum
// builders: json, regex, time, random, crypto, base64, and file, each
// exposed as a value.Module under its own Globals entry the way vec/map
// are in prelude.go. Adapted from the teacher's vm/primitives.go, whose
// functions operated on its own constant-pool VM's *Array/*Dictionary
// types directly; here each wraps the same stdlib call but reads/builds
// value.Value (Vec/Map/Str/Int/Flt/Bool) so it can be called as an
// ordinary feral function through OpCall.
package prelude

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kristofer/feral/pkg/value"
	"github.com/kristofer/feral/pkg/vm"
)

func nativeModule(name string) *value.Module {
	return value.NewModule(-1, name)
}

func argStr(args []value.Value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("expected argument %d", i)
	}
	s, ok := args[i].(*value.Str)
	if !ok {
		return "", fmt.Errorf("expected str argument, got %s", args[i].Type())
	}
	return s.Val, nil
}

func argInt(args []value.Value, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("expected argument %d", i)
	}
	n, ok := args[i].(*value.Int)
	if !ok {
		return 0, fmt.Errorf("expected int argument, got %s", args[i].Type())
	}
	return n.Val, nil
}

// jsonToValue converts a decoded encoding/json result into a feral Value:
// JSON numbers become Int when they're whole, else Flt; objects become
// Map (key order sorted, since encoding/json already loses source order).
func jsonToValue(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.NewNil()
	case bool:
		return value.NewBool(t)
	case float64:
		if t == float64(int64(t)) {
			return value.NewInt(int64(t))
		}
		return value.NewFlt(t)
	case string:
		return value.NewStr(t)
	case []interface{}:
		elems := make([]value.Value, len(t))
		for i, e := range t {
			elems[i] = jsonToValue(e)
		}
		return value.NewVec(elems)
	case map[string]interface{}:
		mv := value.NewMap()
		for k, e := range t {
			mv.Set(k, jsonToValue(e))
		}
		return mv
	default:
		return value.NewNil()
	}
}

// valueToJSON is jsonToValue's inverse, used by json.generate.
func valueToJSON(v value.Value) interface{} {
	switch t := v.(type) {
	case *value.Nil:
		return nil
	case *value.Bool:
		return t.Val
	case *value.Int:
		return t.Val
	case *value.Flt:
		return t.Val
	case *value.Str:
		return t.Val
	case *value.Vec:
		out := make([]interface{}, len(t.Elems))
		for i, e := range t.Elems {
			out[i] = valueToJSON(e)
		}
		return out
	case *value.Map:
		out := make(map[string]interface{}, len(t.Keys))
		for _, k := range t.Keys {
			out[k] = valueToJSON(t.Vals[k])
		}
		return out
	default:
		return value.Display(v)
	}
}

func registerJSON(m *value.Module) {
	m.Globals["parse"] = value.NewNativeFn("json.parse", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("json.parse: %v", err)
		}
		return jsonToValue(decoded), nil
	})
	m.Globals["generate"] = value.NewNativeFn("json.generate", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("json.generate expects exactly one argument")
		}
		data, err := json.Marshal(valueToJSON(args[0]))
		if err != nil {
			return nil, fmt.Errorf("json.generate: %v", err)
		}
		return value.NewStr(string(data)), nil
	})
}

func registerRegex(m *value.Module) {
	m.Globals["match"] = value.NewNativeFn("regex.match", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		pattern, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		text, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		matched, err := regexp.MatchString(pattern, text)
		if err != nil {
			return nil, fmt.Errorf("regex.match: invalid pattern: %v", err)
		}
		return value.NewBool(matched), nil
	})
	m.Globals["find_all"] = value.NewNativeFn("regex.find_all", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		pattern, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		text, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regex.find_all: invalid pattern: %v", err)
		}
		matches := re.FindAllString(text, -1)
		elems := make([]value.Value, len(matches))
		for i, mm := range matches {
			elems[i] = value.NewStr(mm)
		}
		return value.NewVec(elems), nil
	})
	m.Globals["replace"] = value.NewNativeFn("regex.replace", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		pattern, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		text, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		repl, err := argStr(args, 2)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regex.replace: invalid pattern: %v", err)
		}
		return value.NewStr(re.ReplaceAllString(text, repl)), nil
	})
}

func registerTime(m *value.Module) {
	m.Globals["now"] = value.NewNativeFn("time.now", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		return value.NewInt(time.Now().Unix()), nil
	})
	m.Globals["format"] = value.NewNativeFn("time.format", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		ts, err := argInt(args, 0)
		if err != nil {
			return nil, err
		}
		layout, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		t := time.Unix(ts, 0).UTC()
		switch layout {
		case "iso8601", "rfc3339":
			return value.NewStr(t.Format(time.RFC3339)), nil
		case "date":
			return value.NewStr(t.Format("2006-01-02")), nil
		case "time":
			return value.NewStr(t.Format("15:04:05")), nil
		case "datetime":
			return value.NewStr(t.Format("2006-01-02 15:04:05")), nil
		default:
			return value.NewStr(t.Format(layout)), nil
		}
	})
	m.Globals["parse"] = value.NewNativeFn("time.parse", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		layout, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		goLayout := layout
		switch layout {
		case "iso8601", "rfc3339":
			goLayout = time.RFC3339
		case "date":
			goLayout = "2006-01-02"
		case "time":
			goLayout = "15:04:05"
		case "datetime":
			goLayout = "2006-01-02 15:04:05"
		}
		t, err := time.Parse(goLayout, s)
		if err != nil {
			return nil, fmt.Errorf("time.parse: %v", err)
		}
		return value.NewInt(t.Unix()), nil
	})
}

func registerRandom(m *value.Module) {
	m.Globals["int"] = value.NewNativeFn("random.int", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		lo, err := argInt(args, 0)
		if err != nil {
			return nil, err
		}
		hi, err := argInt(args, 1)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, fmt.Errorf("random.int: min must be <= max")
		}
		n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
		if err != nil {
			return nil, fmt.Errorf("random.int: %v", err)
		}
		return value.NewInt(n.Int64() + lo), nil
	})
	m.Globals["float"] = value.NewNativeFn("random.float", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		buf := make([]byte, 8)
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return nil, fmt.Errorf("random.float: %v", err)
		}
		n := uint64(0)
		for _, b := range buf {
			n = n<<8 | uint64(b)
		}
		return value.NewFlt(float64(n>>11) / float64(uint64(1)<<53)), nil
	})
	m.Globals["bytes"] = value.NewNativeFn("random.bytes", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		n, err := argInt(args, 0)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return nil, fmt.Errorf("random.bytes: %v", err)
		}
		return value.NewStr(base64.StdEncoding.EncodeToString(buf)), nil
	})
}

func registerCrypto(m *value.Module) {
	m.Globals["sha256"] = value.NewNativeFn("crypto.sha256", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		h := sha256.Sum256([]byte(s))
		return value.NewStr(fmt.Sprintf("%x", h)), nil
	})
	m.Globals["sha512"] = value.NewNativeFn("crypto.sha512", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		h := sha512.Sum512([]byte(s))
		return value.NewStr(fmt.Sprintf("%x", h)), nil
	})
	m.Globals["md5"] = value.NewNativeFn("crypto.md5", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		h := md5.Sum([]byte(s))
		return value.NewStr(fmt.Sprintf("%x", h)), nil
	})
	m.Globals["aes_generate_key"] = value.NewNativeFn("crypto.aes_generate_key", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		key := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("crypto.aes_generate_key: %v", err)
		}
		return value.NewStr(base64.StdEncoding.EncodeToString(key)), nil
	})
	m.Globals["aes_encrypt"] = value.NewNativeFn("crypto.aes_encrypt", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		data, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		key, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		out, err := aesEncrypt(data, key)
		if err != nil {
			return nil, err
		}
		return value.NewStr(out), nil
	})
	m.Globals["aes_decrypt"] = value.NewNativeFn("crypto.aes_decrypt", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		data, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		key, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		out, err := aesDecrypt(data, key)
		if err != nil {
			return nil, err
		}
		return value.NewStr(out), nil
	})
}

func aesEncrypt(data, key string) (string, error) {
	keyBytes := []byte(key)
	if len(keyBytes) != 32 {
		return "", fmt.Errorf("aes key must be 32 bytes, got %d", len(keyBytes))
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	plaintext := []byte(data)
	padding := aes.BlockSize - (len(plaintext) % aes.BlockSize)
	padded := make([]byte, len(plaintext)+padding)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), nil
}

func aesDecrypt(data, key string) (string, error) {
	keyBytes := []byte(key)
	if len(keyBytes) != 32 {
		return "", fmt.Errorf("aes key must be 32 bytes, got %d", len(keyBytes))
	}
	encrypted, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	if len(encrypted) < aes.BlockSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return "", err
	}
	iv, ciphertext := encrypted[:aes.BlockSize], encrypted[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	padding := int(plaintext[len(plaintext)-1])
	if padding > len(plaintext) || padding > aes.BlockSize {
		return "", fmt.Errorf("invalid padding")
	}
	return string(plaintext[:len(plaintext)-padding]), nil
}

func registerEncoding(m *value.Module) {
	m.Globals["base64_encode"] = value.NewNativeFn("encoding.base64_encode", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		return value.NewStr(base64.StdEncoding.EncodeToString([]byte(s))), nil
	})
	m.Globals["base64_decode"] = value.NewNativeFn("encoding.base64_decode", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("encoding.base64_decode: %v", err)
		}
		return value.NewStr(string(decoded)), nil
	})
	m.Globals["gzip_compress"] = value.NewNativeFn("encoding.gzip_compress", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write([]byte(s)); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return value.NewStr(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
	})
	m.Globals["gzip_decompress"] = value.NewNativeFn("encoding.gzip_decompress", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("encoding.gzip_decompress: %v", err)
		}
		r, err := gzip.NewReader(bytes.NewReader(decoded))
		if err != nil {
			return nil, fmt.Errorf("encoding.gzip_decompress: %v", err)
		}
		defer r.Close()
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return value.NewStr(string(content)), nil
	})
	m.Globals["zip_compress"] = value.NewNativeFn("encoding.zip_compress", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		w := zip.NewWriter(&buf)
		f, err := w.Create("data")
		if err != nil {
			return nil, err
		}
		if _, err := f.Write([]byte(s)); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return value.NewStr(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
	})
	m.Globals["zip_decompress"] = value.NewNativeFn("encoding.zip_decompress", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("encoding.zip_decompress: %v", err)
		}
		r, err := zip.NewReader(bytes.NewReader(decoded), int64(len(decoded)))
		if err != nil {
			return nil, fmt.Errorf("encoding.zip_decompress: %v", err)
		}
		if len(r.File) == 0 {
			return nil, fmt.Errorf("encoding.zip_decompress: empty archive")
		}
		f, err := r.File[0].Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return value.NewStr(string(content)), nil
	})
}

func registerFile(m *value.Module) {
	m.Globals["read"] = value.NewNativeFn("file.read", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		path, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("file.read: %v", err)
		}
		return value.NewStr(string(content)), nil
	})
	m.Globals["write"] = value.NewNativeFn("file.write", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		path, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		content, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("file.write: %v", err)
		}
		return value.NewNil(), nil
	})
	m.Globals["exists"] = value.NewNativeFn("file.exists", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		path, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		_, statErr := os.Stat(path)
		return value.NewBool(statErr == nil), nil
	})
	m.Globals["delete"] = value.NewNativeFn("file.delete", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		path, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("file.delete: %v", err)
		}
		return value.NewNil(), nil
	})
}

func registerHTTP(m *value.Module) {
	m.Globals["get"] = value.NewNativeFn("http.get", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		url, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		resp, err := http.Get(url)
		if err != nil {
			return nil, fmt.Errorf("http.get: %v", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("http.get: %v", err)
		}
		return value.NewStr(string(body)), nil
	})
	m.Globals["post"] = value.NewNativeFn("http.post", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		url, err := argStr(args, 0)
		if err != nil {
			return nil, err
		}
		body, err := argStr(args, 1)
		if err != nil {
			return nil, err
		}
		resp, err := http.Post(url, "text/plain", strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("http.post: %v", err)
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("http.post: %v", err)
		}
		return value.NewStr(string(respBody)), nil
	})
}

// registerStdlib installs the json/regex/time/random/crypto/encoding/file/
// http module namespaces into m's globals, each a value.Module the way
// vec/map are registered in registerNatives.
func registerStdlib(m *vm.VM) {
	jsonMod := nativeModule("json")
	registerJSON(jsonMod)
	m.Globals["json"] = jsonMod

	regexMod := nativeModule("regex")
	registerRegex(regexMod)
	m.Globals["regex"] = regexMod

	timeMod := nativeModule("time")
	registerTime(timeMod)
	m.Globals["time"] = timeMod

	randomMod := nativeModule("random")
	registerRandom(randomMod)
	m.Globals["random"] = randomMod

	cryptoMod := nativeModule("crypto")
	registerCrypto(cryptoMod)
	m.Globals["crypto"] = cryptoMod

	encodingMod := nativeModule("encoding")
	registerEncoding(encodingMod)
	m.Globals["encoding"] = encodingMod

	fileMod := nativeModule("file")
	registerFile(fileMod)
	m.Globals["file"] = fileMod

	httpMod := nativeModule("http")
	registerHTTP(httpMod)
	m.Globals["http"] = httpMod
}
