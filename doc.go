/*
SUBGHZ is an rtl-sdr receiver and encoder for sub-1GHz OOK remote controls:
garage doors, gates, blinds and car alarms.

Modes:

	--mode=receive

Connects to rtl_tcp, slices the OOK carrier into pulses and runs every pulse
through every protocol decoder. Decoded frames are written to stdout.

	--mode=decode --in=capture.sub

Same as receive, reading the pulses of a RAW saved signal file instead of a
radio.

	--mode=analyze

Tunes through a list of common remote frequencies and reports the strongest
one whenever it is above the threshold, refined by a fine sweep around it.
Frequencies, threshold and dwell time come from the analyzer section of the
config file.

	--mode=encode --in=gate.sub [--out=gate_raw.sub]

Reads a saved signal file, builds the transmission its protocol would send
and writes it as a RAW saved signal file. Rolling code files have their
counter advanced by one, like a press of the physical remote.

	--mode=keystore --in=keeloq_mfcodes [--encrypt --out=encrypted]

Lists the manufacturer keys of a keystore, or writes it back encrypted with
the AES key.

Command-line Flags:

	--format="plain"

Sets the output format of decoded frames: plain, csv or json. Plain text is
formatted using the following format string:

	{Time:%s Frequency:%d %s:{Protocol:%s Type:%s Bits:%d Key:0x%s ...}}

csv output starts with a header row. json output is one object per line.

	--unique=false

Suppress a frame when it repeats the previous frame of the same protocol and
serial number. Remotes send every press several times.

	--protocol="KeeLoq,Princeton"

Display only frames of the listed protocols.

	--raw=""

Also record every received pulse to a RAW saved signal file, written when
the receiver stops.

	--duration=0

Sets time to receive for, 0 for infinite.

	--threshold=0.05

Squared magnitude, relative to full scale, above which the carrier is
considered on. The carrier is considered off below three quarters of it.

	--keystore="" --aeskey="" --niceflorstable="" --cameatomotable=""

Manufacturer keystore and rainbow tables of rolling code protocols. Without
them rolling code frames are still reported, with their fixed part only. The
AES key is hex encoded.

	--config=""

Yaml file holding any of:

	keystore: /etc/subghz/keeloq_mfcodes
	aes_key: <64 hex digits>
	nice_flor_s_table: /etc/subghz/nice_flor_s
	came_atomo_table: /etc/subghz/came_atomo
	metrics: ":9100"
	analyzer:
	  frequencies: [315000000, 433920000, 868350000]
	  threshold: -93
	  fine_range: 300000
	  fine_step: 20000
	  dwell: 2ms

Flags given on the command line take precedence.

	--metrics=""

Serves prometheus counters on the given address under /metrics.

Every flag may also be given as an environment variable, SUBGHZ_ followed by
the upper case flag name, for example SUBGHZ_CENTERFREQ=315M.
*/
package main
