package model

// commonPortLabels 常见端口的习惯名称，只用于终端展示，不做协议识别
var commonPortLabels = map[int]string{
	20:    "FTP-DATA",
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	69:    "TFTP",
	80:    "HTTP",
	110:   "POP3",
	111:   "RPC",
	123:   "NTP",
	135:   "MSRPC",
	139:   "NetBIOS-SSN",
	143:   "IMAP",
	161:   "SNMP",
	389:   "LDAP",
	443:   "HTTPS",
	445:   "SMB",
	514:   "Syslog",
	993:   "IMAPS",
	995:   "POP3S",
	1433:  "MSSQL",
	1521:  "Oracle",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	8080:  "HTTP-Proxy",
	8443:  "HTTPS-Alt",
	9200:  "Elasticsearch",
	27017: "MongoDB",
}

// PortLabel 返回端口的习惯名称，未知端口返回 "-"
func PortLabel(port int) string {
	if name, ok := commonPortLabels[port]; ok {
		return name
	}
	return "-"
}
