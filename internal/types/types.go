package types

type UnixMilli int64
