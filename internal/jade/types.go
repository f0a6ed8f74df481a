package jade

// SignerDescriptor 描述多签中的一个签名方。
type SignerDescriptor struct {
	Fingerprint []byte   `cbor:"fingerprint"`
	Derivation  []uint32 `cbor:"derivation"`
	Xpub        string   `cbor:"xpub"`
	Path        []uint32 `cbor:"path,omitempty"`
}

// MultisigDescriptor 是注册多签钱包所需的描述。
type MultisigDescriptor struct {
	Variant           string             `cbor:"variant"`
	Sorted            bool               `cbor:"sorted"`
	Threshold         int                `cbor:"threshold"`
	Signers           []SignerDescriptor `cbor:"signers"`
	MasterBlindingKey []byte             `cbor:"master_blinding_key,omitempty"`
}

// MultisigSummary 是 get_registered_multisigs 返回的摘要。
type MultisigSummary struct {
	Variant           string `cbor:"variant"`
	Sorted            bool   `cbor:"sorted"`
	Threshold         int    `cbor:"threshold"`
	NumSigners        int    `cbor:"num_signers"`
	MasterBlindingKey []byte `cbor:"master_blinding_key,omitempty"`
}

// RegisteredMultisig 是 get_registered_multisig 返回的完整记录。
type RegisteredMultisig struct {
	MultisigName string             `cbor:"multisig_name,omitempty"`
	Network      string             `cbor:"network,omitempty"`
	Descriptor   MultisigDescriptor `cbor:"descriptor"`
	MultisigFile string             `cbor:"multisig_file,omitempty"`
}

// ReceiveOptions 只有非零字段会被发送。
type ReceiveOptions struct {
	Path           []uint32   `cbor:"path,omitempty"`
	Paths          [][]uint32 `cbor:"paths,omitempty"`
	MultisigName   string     `cbor:"multisig_name,omitempty"`
	DescriptorName string     `cbor:"descriptor_name,omitempty"`
	Variant        string     `cbor:"variant,omitempty"`
	RecoveryXpub   string     `cbor:"recovery_xpub,omitempty"`
	CSVBlocks      uint32     `cbor:"csv_blocks,omitempty"`
	Confidential   bool       `cbor:"confidential,omitempty"`
}

type receiveParams struct {
	Network string `cbor:"network"`
	ReceiveOptions
}

type registerMultisigParams struct {
	Network      string             `cbor:"network"`
	MultisigName string             `cbor:"multisig_name"`
	Descriptor   MultisigDescriptor `cbor:"descriptor"`
}
